package recognition

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/receipt-pipeline/internal/httpclient"
)

// HTTPExtractor calls a recognition service over HTTP. The service contract
// is a single POST taking the base64 image plus options and returning text,
// confidence and optional blocks.
type HTTPExtractor struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewHTTPExtractor(url string, timeout time.Duration, logger *slog.Logger) *HTTPExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &HTTPExtractor{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type extractRequest struct {
	Image              string `json:"image"` // base64
	Model              string `json:"model,omitempty"`
	Language           string `json:"language,omitempty"`
	EnhanceQuality     bool   `json:"enhance_quality"`
	ExtractCoordinates bool   `json:"extract_coordinates"`
}

type extractResponse struct {
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	Blocks     []TextBlock `json:"text_blocks,omitempty"`
}

func (e *HTTPExtractor) ExtractText(ctx context.Context, image []byte, opts Options) (Result, error) {
	start := time.Now()
	req := extractRequest{
		Image:              base64.StdEncoding.EncodeToString(image),
		Model:              opts.Model,
		Language:           opts.Language,
		EnhanceQuality:     opts.EnhanceQuality,
		ExtractCoordinates: opts.ExtractCoordinates,
	}

	raw, _, err := httpclient.SendJSON(ctx, e.client, e.url, req, nil, e.logger)
	if err != nil {
		return Result{}, fmt.Errorf("recognition request: %w", err)
	}

	var resp extractResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Result{}, fmt.Errorf("decode recognition response: %w", err)
	}

	return Result{
		Text:       resp.Text,
		Confidence: resp.Confidence,
		Blocks:     resp.Blocks,
		Elapsed:    time.Since(start),
	}, nil
}
