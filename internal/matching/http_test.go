package matching

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

func TestHTTPMatcherRequestExcludesRawText(t *testing.T) {
	var body []byte
	productID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		body, err = io.ReadAll(r.Body)
		require.NoError(t, err)

		_ = json.NewEncoder(w).Encode(matchResponse{Results: []MatchResult{
			{
				ItemIndex: 0,
				BestMatch: &ProductMatch{ProductID: productID, ProductName: "Coffee Beans 500g", Confidence: 0.95, MatchType: "exact"},
				Matches:   []ProductMatch{{ProductID: productID, ProductName: "Coffee Beans 500g", Confidence: 0.95, MatchType: "exact"}},
			},
		}})
	}))
	defer srv.Close()

	matcher := NewHTTPMatcher(srv.URL, 5*time.Second, slog.New(slog.DiscardHandler))
	price := int64(1250)
	items := []entity.LineItemCandidate{
		{Description: "Coffee beans", TotalPrice: &price, RawText: "COFFEE BNS .5KG CARD ****1234"},
	}

	results, err := matcher.Match(context.Background(), items, uuid.New(), Options{SimilarityThreshold: 0.8, MaxMatches: 5})

	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].BestMatch)
	assert.Equal(t, productID, results[0].BestMatch.ProductID)

	// The raw OCR line never crosses the wire.
	assert.NotContains(t, string(body), "CARD ****1234")
	assert.Contains(t, string(body), "Coffee beans")
}

func TestHTTPMatcherNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "catalog unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	matcher := NewHTTPMatcher(srv.URL, 5*time.Second, slog.New(slog.DiscardHandler))

	_, err := matcher.Match(context.Background(), []entity.LineItemCandidate{{Description: "x"}}, uuid.New(), Options{})
	assert.Error(t, err)
}

func TestMatchResultAmbiguous(t *testing.T) {
	best := ProductMatch{ProductID: uuid.New(), Confidence: 0.95}
	low := ProductMatch{ProductID: uuid.New(), Confidence: 0.55}

	cases := []struct {
		name string
		r    MatchResult
		want bool
	}{
		{"single confident match", MatchResult{Matches: []ProductMatch{best}, BestMatch: &best}, false},
		{"multiple contenders", MatchResult{Matches: []ProductMatch{best, low}, BestMatch: &best}, true},
		{"low confidence best", MatchResult{Matches: []ProductMatch{low}, BestMatch: &low}, true},
		{"no match at all", MatchResult{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.r.Ambiguous(0.70))
		})
	}
}
