package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
)

// ManualReviewFlag marks a job for a human reviewer. A job may carry several
// flags; each resolves independently.
type ManualReviewFlag struct {
	ID          uuid.UUID                    `json:"id"`
	JobID       uuid.UUID                    `json:"job_id"`
	TenantID    uuid.UUID                    `json:"tenant_id"`
	Reason      constants.ManualReviewReason `json:"reason"`
	Severity    constants.ErrorSeverity      `json:"severity"`
	Description string                       `json:"description"`
	FlaggedBy   string                       `json:"flagged_by"` // "system" or a user id
	FlaggedAt   time.Time                    `json:"flagged_at"`
	Resolved    bool                         `json:"resolved"`
	ResolvedBy  *uuid.UUID                   `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time                   `json:"resolved_at,omitempty"`
}
