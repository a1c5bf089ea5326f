package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
)

// UploadMetadata describes the uploaded source image as reported by the
// upload service.
type UploadMetadata struct {
	FileName    string  `json:"file_name"`
	FileSize    int64   `json:"file_size"`
	ContentType string  `json:"content_type"`
	Checksum    *string `json:"checksum,omitempty"` // hex SHA-256, when the uploader computed one
}

// ProcessingOptions enumerates every knob a submitter can set for one job.
// Immutable once the job is created.
type ProcessingOptions struct {
	OCRModel            string                    `json:"ocr_model"`
	ParsingStrategy     constants.ParsingStrategy `json:"parsing_strategy"`
	MatchingThreshold   float64                   `json:"product_matching_threshold"` // [0,1]
	RequireManualReview bool                      `json:"require_manual_review"`
}

// ProcessingJob represents one unit of work for data transfer between layers.
type ProcessingJob struct {
	ID           uuid.UUID           `json:"id"`
	TenantID     uuid.UUID           `json:"tenant_id"`
	UserID       uuid.UUID           `json:"user_id"`
	ImageKey     string              `json:"image_key"`
	Upload       UploadMetadata      `json:"upload"`
	Options      ProcessingOptions   `json:"options"`
	Status       constants.JobStatus `json:"status"`
	RetryCount   int                 `json:"retry_count"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
}
