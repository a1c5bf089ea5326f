package validation

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
)

// Classify maps a stage fault into the error taxonomy. Category follows the
// stage; severity depends on what went wrong:
//
//   - tenant isolation violations are CRITICAL regardless of stage
//   - matching faults are MEDIUM (the pipeline degrades instead of aborting)
//   - cancellations are MEDIUM (the caller gave up, the service did not fail)
//   - everything else that aborts a stage is HIGH
func Classify(stage constants.Stage, err error) (constants.ErrorCategory, constants.ErrorSeverity) {
	category := constants.CategoryForStage(stage)

	switch {
	case errors.Is(err, common.ErrTenantIsolation):
		return category, constants.SeverityCritical
	case stage == constants.StageMatch:
		return category, constants.SeverityMedium
	case errors.Is(err, context.Canceled):
		return category, constants.SeverityMedium
	case errors.Is(err, common.ErrValidation):
		return constants.CategoryValidation, constants.SeverityLow
	default:
		return category, constants.SeverityHigh
	}
}
