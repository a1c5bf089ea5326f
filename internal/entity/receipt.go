package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
)

// VendorInfo is the extracted merchant with its own confidence score.
type VendorInfo struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// BoundingBox locates a text block on the source image, in pixels.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// LineItemCandidate is one parsed receipt line. Any monetary field may be
// nil: OCR frequently drops a column. RawText is the uninterpreted source
// line and must never leave process memory.
type LineItemCandidate struct {
	Description      string       `json:"description"`
	Quantity         *float64     `json:"quantity,omitempty"`
	UnitPrice        *int64       `json:"unit_price,omitempty"`  // minor currency units
	TotalPrice       *int64       `json:"total_price,omitempty"` // minor currency units
	Confidence       float64      `json:"confidence"`
	RawText          string       `json:"-"` // in-memory only, never persisted
	Box              *BoundingBox `json:"box,omitempty"`
	MatchedProductID *uuid.UUID   `json:"matched_product_id,omitempty"`
	MatchConfidence  *float64     `json:"match_confidence,omitempty"`
	NeedsReview      bool         `json:"needs_review"`
}

// ParseConfidence holds per-field 0-1 scores from the parsing service.
type ParseConfidence struct {
	Overall   float64 `json:"overall"`
	Vendor    float64 `json:"vendor"`
	Date      float64 `json:"date"`
	Total     float64 `json:"total"`
	LineItems float64 `json:"line_items"`
}

// ParsingMetadata records how a parse was produced.
type ParsingMetadata struct {
	Elapsed    time.Duration             `json:"elapsed"`
	ModelName  string                    `json:"model_name"`
	Strategy   constants.ParsingStrategy `json:"strategy"`
	BlockCount int                       `json:"block_count"`
}

// StructuredReceiptData is the pipeline's working value: created by the
// parsing stage, enriched by the matching stage, consumed by persistence.
type StructuredReceiptData struct {
	Vendor     *VendorInfo         `json:"vendor,omitempty"`
	TxDate     *time.Time          `json:"tx_date,omitempty"`
	Total      *int64              `json:"total,omitempty"`    // minor currency units
	Subtotal   *int64              `json:"subtotal,omitempty"` // minor currency units
	Tax        *int64              `json:"tax,omitempty"`      // minor currency units
	LineItems  []LineItemCandidate `json:"line_items"`
	Confidence ParseConfidence     `json:"confidence"`
	Metadata   ParsingMetadata     `json:"metadata"`
}

// ReceiptRecord is a stored receipt header as read back from the database,
// used by exports and review tooling.
type ReceiptRecord struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        uuid.UUID  `json:"tenant_id"`
	JobID           uuid.UUID  `json:"job_id"`
	VendorName      *string    `json:"vendor_name,omitempty"`
	TxDate          *time.Time `json:"tx_date,omitempty"`
	Total           *int64     `json:"total,omitempty"`
	Subtotal        *int64     `json:"subtotal,omitempty"`
	Tax             *int64     `json:"tax,omitempty"`
	ParseConfidence float64    `json:"parse_confidence"`
	LineItemCount   int        `json:"line_item_count"`
	CreatedAt       time.Time  `json:"created_at"`
}

// LineItemSum adds up the TotalPrice of every line item that has one.
// The second return reports how many items carried a total at all.
func (d *StructuredReceiptData) LineItemSum() (int64, int) {
	var sum int64
	counted := 0
	for _, item := range d.LineItems {
		if item.TotalPrice != nil {
			sum += *item.TotalPrice
			counted++
		}
	}
	return sum, counted
}
