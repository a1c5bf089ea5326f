package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
)

// ProcessingContext is the diagnostic snapshot attached to a logged error.
// Operator-facing only; submitters see just the error id.
type ProcessingContext struct {
	Stage      constants.Stage `json:"stage"`
	ImageKey   string          `json:"image_key,omitempty"`
	OCRModel   string          `json:"ocr_model,omitempty"`
	Strategy   string          `json:"strategy,omitempty"`
	RetryCount int             `json:"retry_count"`
	Elapsed    time.Duration   `json:"elapsed,omitempty"`
}

// ProcessingError is one append-only error log entry. Once written, only the
// Resolved fields may change.
type ProcessingError struct {
	ID         uuid.UUID               `json:"id"`
	JobID      *uuid.UUID              `json:"job_id,omitempty"`
	TenantID   *uuid.UUID              `json:"tenant_id,omitempty"`
	Category   constants.ErrorCategory `json:"category"`
	Severity   constants.ErrorSeverity `json:"severity"`
	Stage      constants.Stage         `json:"stage"`
	Code       string                  `json:"code"`
	Message    string                  `json:"message"`
	Details    *string                 `json:"details,omitempty"`
	Context    *ProcessingContext      `json:"context,omitempty"`
	OccurredAt time.Time               `json:"occurred_at"`
	Resolved   bool                    `json:"resolved"`
	ResolvedBy *uuid.UUID              `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time              `json:"resolved_at,omitempty"`
}
