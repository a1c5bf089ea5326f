package matching

import (
	"context"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// ProductMatcher is the boundary to the external catalog-matching service.
type ProductMatcher interface {
	Match(ctx context.Context, items []entity.LineItemCandidate, tenantID uuid.UUID, opts Options) ([]MatchResult, error)
}

// Options tunes one matching call.
type Options struct {
	SimilarityThreshold float64 `json:"similarity_threshold"` // [0,1]
	MaxMatches          int     `json:"max_matches"`
	UseAliases          bool    `json:"use_aliases"`
}

// ProductMatch is one ranked catalog candidate for a line item.
type ProductMatch struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Similarity  float64   `json:"similarity"`
	Confidence  float64   `json:"confidence"`
	MatchType   string    `json:"match_type"` // "exact" | "alias" | "fuzzy"
}

// MatchResult pairs a line item index with its candidates. BestMatch is nil
// when nothing cleared the similarity threshold.
type MatchResult struct {
	ItemIndex   int            `json:"item_index"`
	Matches     []ProductMatch `json:"matches"`
	BestMatch   *ProductMatch  `json:"best_match,omitempty"`
	NeedsReview bool           `json:"requires_manual_review"`
}

// Ambiguous reports whether this result should produce stored candidate rows:
// more than one contender, or a best match the matcher itself is unsure of.
func (r *MatchResult) Ambiguous(threshold float64) bool {
	if len(r.Matches) > 1 {
		return true
	}
	return r.BestMatch != nil && r.BestMatch.Confidence < threshold
}
