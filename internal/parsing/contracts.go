package parsing

import (
	"context"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
	"github.com/joseph-ayodele/receipt-pipeline/internal/recognition"
)

// FieldParser is the boundary to the external parsing service: recognized
// text in, structured candidate out.
//
// "No data found" is not an error. Implementations return a low-confidence
// value with nil fields instead; an error means a genuine internal failure.
type FieldParser interface {
	Parse(ctx context.Context, text string, strategy constants.ParsingStrategy, blocks []recognition.TextBlock) (entity.StructuredReceiptData, error)
}
