package recognition

import (
	"context"
	"time"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// TextExtractor is the boundary to the external recognition service:
// image bytes in, extracted text out.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte, opts Options) (Result, error)
}

// Options selects recognition behavior for one call.
type Options struct {
	Model              string
	Language           string
	EnhanceQuality     bool
	ExtractCoordinates bool
}

// TextBlock is one recognized region with its location on the image.
type TextBlock struct {
	Text string             `json:"text"`
	Box  entity.BoundingBox `json:"bounding_box"`
}

// Result is the recognition service's answer for one image.
type Result struct {
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence"`
	Blocks     []TextBlock   `json:"text_blocks,omitempty"`
	Elapsed    time.Duration `json:"-"`
}
