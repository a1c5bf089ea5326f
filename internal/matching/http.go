package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
	"github.com/joseph-ayodele/receipt-pipeline/internal/httpclient"
)

// HTTPMatcher calls a catalog-matching service over HTTP.
type HTTPMatcher struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewHTTPMatcher(url string, timeout time.Duration, logger *slog.Logger) *HTTPMatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &HTTPMatcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type matchItem struct {
	Index       int      `json:"index"`
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *int64   `json:"unit_price,omitempty"`
}

type matchRequest struct {
	TenantID string      `json:"tenant_id"`
	Items    []matchItem `json:"items"`
	Options  Options     `json:"options"`
}

type matchResponse struct {
	Results []MatchResult `json:"results"`
}

func (m *HTTPMatcher) Match(ctx context.Context, items []entity.LineItemCandidate, tenantID uuid.UUID, opts Options) ([]MatchResult, error) {
	req := matchRequest{TenantID: tenantID.String(), Options: opts}
	for i, item := range items {
		// Raw source text stays out of the request on purpose.
		req.Items = append(req.Items, matchItem{
			Index:       i,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	raw, _, err := httpclient.SendJSON(ctx, m.client, m.url, req, nil, m.logger)
	if err != nil {
		return nil, fmt.Errorf("match request: %w", err)
	}

	var resp matchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode match response: %w", err)
	}
	return resp.Results, nil
}
