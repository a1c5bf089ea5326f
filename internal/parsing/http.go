package parsing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
	"github.com/joseph-ayodele/receipt-pipeline/internal/httpclient"
	"github.com/joseph-ayodele/receipt-pipeline/internal/recognition"
)

// HTTPParser calls a parsing service over HTTP.
type HTTPParser struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewHTTPParser(url string, timeout time.Duration, logger *slog.Logger) *HTTPParser {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &HTTPParser{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type parseRequest struct {
	Text     string                  `json:"text"`
	Strategy string                  `json:"strategy"`
	Blocks   []recognition.TextBlock `json:"blocks,omitempty"`
}

func (p *HTTPParser) Parse(ctx context.Context, text string, strategy constants.ParsingStrategy, blocks []recognition.TextBlock) (entity.StructuredReceiptData, error) {
	start := time.Now()
	req := parseRequest{Text: text, Strategy: string(strategy), Blocks: blocks}

	raw, _, err := httpclient.SendJSON(ctx, p.client, p.url, req, nil, p.logger)
	if err != nil {
		return entity.StructuredReceiptData{}, fmt.Errorf("parse request: %w", err)
	}

	var data entity.StructuredReceiptData
	if err := json.Unmarshal(raw, &data); err != nil {
		return entity.StructuredReceiptData{}, fmt.Errorf("decode parse response: %w", err)
	}
	if data.LineItems == nil {
		data.LineItems = []entity.LineItemCandidate{}
	}
	data.Metadata.Elapsed = time.Since(start)
	data.Metadata.Strategy = strategy
	data.Metadata.BlockCount = len(blocks)
	return data, nil
}
