package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

type ErrorLogRepository interface {
	// Insert appends one processing error. Rows are immutable afterwards
	// except for the resolved fields.
	Insert(ctx context.Context, perr *entity.ProcessingError) error
	Resolve(ctx context.Context, errorID uuid.UUID, resolvedBy uuid.UUID) error
}

type errorLogRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewErrorLogRepository(pool *pgxpool.Pool, logger *slog.Logger) ErrorLogRepository {
	return &errorLogRepository{pool: pool, logger: logger}
}

func (r *errorLogRepository) Insert(ctx context.Context, perr *entity.ProcessingError) error {
	var contextJSON []byte
	if perr.Context != nil {
		if b, err := json.Marshal(perr.Context); err == nil {
			contextJSON = b
		}
	}

	const q = `
		INSERT INTO processing_error (
			id, job_id, tenant_id, category, severity, stage,
			code, message, details, context, occurred_at, resolved
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,false)`
	_, err := r.pool.Exec(ctx, q,
		perr.ID, perr.JobID, perr.TenantID, string(perr.Category), string(perr.Severity), string(perr.Stage),
		perr.Code, perr.Message, perr.Details, contextJSON, perr.OccurredAt,
	)
	if err != nil {
		r.logger.Error("processing error insert failed", "error_id", perr.ID, "error", err)
		return err
	}
	return nil
}

func (r *errorLogRepository) Resolve(ctx context.Context, errorID uuid.UUID, resolvedBy uuid.UUID) error {
	const q = `
		UPDATE processing_error
		SET resolved = true, resolved_by = $2, resolved_at = $3
		WHERE id = $1 AND resolved = false`
	if _, err := r.pool.Exec(ctx, q, errorID, resolvedBy, time.Now().UTC()); err != nil {
		r.logger.Error("processing error resolve failed", "error_id", errorID, "error", err)
		return err
	}
	return nil
}
