// Package queue consumes job messages and drives the pipeline, translating
// processing outcomes into acknowledge-or-redeliver decisions.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// UploadMetadata mirrors the upload block of the wire message.
type UploadMetadata struct {
	FileName    string  `json:"fileName"`
	FileSize    int64   `json:"fileSize"`
	ContentType string  `json:"contentType"`
	Checksum    *string `json:"checksum,omitempty"`
}

// ProcessingOptions mirrors the options block of the wire message.
type ProcessingOptions struct {
	OCRModel            string  `json:"ocrModel"`
	ParsingStrategy     string  `json:"parsingStrategy"`
	MatchingThreshold   float64 `json:"productMatchingThreshold"`
	RequireManualReview bool    `json:"requireManualReview"`
}

// JobMessage is the single contract between the upload service and this
// worker. One message, one job, one pipeline run per delivery.
type JobMessage struct {
	JobID      uuid.UUID         `json:"jobId"`
	TenantID   uuid.UUID         `json:"tenantId"`
	UserID     uuid.UUID         `json:"userId"`
	ImageKey   string            `json:"imageKey"`
	Upload     UploadMetadata    `json:"uploadMetadata"`
	Options    ProcessingOptions `json:"processingOptions"`
	RetryCount int               `json:"retryCount,omitempty"`
}

// ToJob builds the in-memory job the pipeline works on. Unknown strategy
// labels fall back to ADAPTIVE rather than failing the message.
func (m *JobMessage) ToJob() *entity.ProcessingJob {
	strategy, _ := constants.ParseStrategy(m.Options.ParsingStrategy)
	return &entity.ProcessingJob{
		ID:       m.JobID,
		TenantID: m.TenantID,
		UserID:   m.UserID,
		ImageKey: m.ImageKey,
		Upload: entity.UploadMetadata{
			FileName:    m.Upload.FileName,
			FileSize:    m.Upload.FileSize,
			ContentType: m.Upload.ContentType,
			Checksum:    m.Upload.Checksum,
		},
		Options: entity.ProcessingOptions{
			OCRModel:            m.Options.OCRModel,
			ParsingStrategy:     strategy,
			MatchingThreshold:   m.Options.MatchingThreshold,
			RequireManualReview: m.Options.RequireManualReview,
		},
		Status:     constants.JobStatusQueued,
		RetryCount: m.RetryCount,
		CreatedAt:  time.Now().UTC(),
	}
}
