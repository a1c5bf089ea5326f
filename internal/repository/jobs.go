package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

type JobRepository interface {
	GetByID(ctx context.Context, jobID uuid.UUID) (*entity.ProcessingJob, error)
	// MarkProcessing moves the job to PROCESSING and stamps started_at.
	MarkProcessing(ctx context.Context, jobID uuid.UUID) error
	// MarkTerminal records the pipeline outcome. errorMessage is appended to
	// the job's audit trail rather than overwritten.
	MarkTerminal(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, errorMessage *string) error
	// IncrementRetryCount bumps retry_count and returns the new value. Called
	// before the backoff delay so a crash mid-retry cannot produce an extra
	// attempt.
	IncrementRetryCount(ctx context.Context, jobID uuid.UUID) (int, error)
	// UpdateStatus is the best-effort variant: failures are logged, never
	// returned.
	UpdateStatus(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, errorMessage *string)
}

type jobRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewJobRepository(pool *pgxpool.Pool, logger *slog.Logger) JobRepository {
	return &jobRepository{pool: pool, logger: logger}
}

func (r *jobRepository) GetByID(ctx context.Context, jobID uuid.UUID) (*entity.ProcessingJob, error) {
	const q = `
		SELECT id, tenant_id, user_id, image_key,
		       file_name, file_size, content_type, checksum,
		       ocr_model, parsing_strategy, matching_threshold, require_manual_review,
		       status, retry_count, error_message, created_at, started_at, completed_at
		FROM processing_job
		WHERE id = $1`

	var job entity.ProcessingJob
	var strategy string
	err := r.pool.QueryRow(ctx, q, jobID).Scan(
		&job.ID, &job.TenantID, &job.UserID, &job.ImageKey,
		&job.Upload.FileName, &job.Upload.FileSize, &job.Upload.ContentType, &job.Upload.Checksum,
		&job.Options.OCRModel, &strategy, &job.Options.MatchingThreshold, &job.Options.RequireManualReview,
		&job.Status, &job.RetryCount, &job.ErrorMessage, &job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		r.logger.Error("job lookup failed", "job_id", jobID, "error", err)
		return nil, err
	}
	job.Options.ParsingStrategy, _ = constants.ParseStrategy(strategy)
	return &job, nil
}

func (r *jobRepository) MarkProcessing(ctx context.Context, jobID uuid.UUID) error {
	const q = `
		UPDATE processing_job
		SET status = $2, started_at = COALESCE(started_at, $3)
		WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, jobID, string(constants.JobStatusProcessing), time.Now().UTC()); err != nil {
		r.logger.Error("job mark processing failed", "job_id", jobID, "error", err)
		return err
	}
	return nil
}

func (r *jobRepository) MarkTerminal(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, errorMessage *string) error {
	const q = `
		UPDATE processing_job
		SET status = $2,
		    completed_at = $3,
		    error_message = CASE
		        WHEN $4::text IS NULL THEN error_message
		        WHEN error_message IS NULL THEN $4::text
		        ELSE error_message || E'\n' || $4::text
		    END
		WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, jobID, string(status), time.Now().UTC(), errorMessage); err != nil {
		r.logger.Error("job mark terminal failed", "job_id", jobID, "status", status, "error", err)
		return err
	}
	r.logger.Info("job finished", "job_id", jobID, "status", status)
	return nil
}

func (r *jobRepository) IncrementRetryCount(ctx context.Context, jobID uuid.UUID) (int, error) {
	const q = `
		UPDATE processing_job
		SET retry_count = retry_count + 1
		WHERE id = $1
		RETURNING retry_count`
	var count int
	if err := r.pool.QueryRow(ctx, q, jobID).Scan(&count); err != nil {
		r.logger.Error("job retry increment failed", "job_id", jobID, "error", err)
		return 0, err
	}
	r.logger.Info("job retry count incremented", "job_id", jobID, "retry_count", count)
	return count, nil
}

func (r *jobRepository) UpdateStatus(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, errorMessage *string) {
	if err := r.MarkTerminal(ctx, jobID, status, errorMessage); err != nil {
		// Best-effort by contract: a status-write failure must never abort
		// the pipeline.
		r.logger.Warn("job status update dropped", "job_id", jobID, "status", status, "error", err)
	}
}
