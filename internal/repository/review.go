package repository

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

type ReviewRepository interface {
	AddFlag(ctx context.Context, flag *entity.ManualReviewFlag) error
	ResolveFlag(ctx context.Context, flagID uuid.UUID, resolvedBy uuid.UUID) error
	ListOpenFlags(ctx context.Context, tenantID uuid.UUID) ([]*entity.ManualReviewFlag, error)
}

type reviewRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewReviewRepository(pool *pgxpool.Pool, logger *slog.Logger) ReviewRepository {
	return &reviewRepository{pool: pool, logger: logger}
}

func (r *reviewRepository) AddFlag(ctx context.Context, flag *entity.ManualReviewFlag) error {
	const q = `
		INSERT INTO manual_review_flag (
			id, job_id, tenant_id, reason, severity, description,
			flagged_by, flagged_at, resolved
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,false)`
	_, err := r.pool.Exec(ctx, q,
		flag.ID, flag.JobID, flag.TenantID, string(flag.Reason), string(flag.Severity), flag.Description,
		flag.FlaggedBy, flag.FlaggedAt,
	)
	if err != nil {
		r.logger.Error("review flag insert failed", "job_id", flag.JobID, "reason", flag.Reason, "error", err)
		return err
	}
	r.logger.Info("review flag added", "job_id", flag.JobID, "reason", flag.Reason, "severity", flag.Severity)
	return nil
}

func (r *reviewRepository) ResolveFlag(ctx context.Context, flagID uuid.UUID, resolvedBy uuid.UUID) error {
	const q = `
		UPDATE manual_review_flag
		SET resolved = true, resolved_by = $2, resolved_at = now()
		WHERE id = $1 AND resolved = false`
	if _, err := r.pool.Exec(ctx, q, flagID, resolvedBy); err != nil {
		r.logger.Error("review flag resolve failed", "flag_id", flagID, "error", err)
		return err
	}
	return nil
}

func (r *reviewRepository) ListOpenFlags(ctx context.Context, tenantID uuid.UUID) ([]*entity.ManualReviewFlag, error) {
	const q = `
		SELECT id, job_id, tenant_id, reason, severity, description,
		       flagged_by, flagged_at, resolved, resolved_by, resolved_at
		FROM manual_review_flag
		WHERE tenant_id = $1 AND resolved = false
		ORDER BY flagged_at`

	rows, err := r.pool.Query(ctx, q, tenantID)
	if err != nil {
		r.logger.Error("review flag list failed", "tenant_id", tenantID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var flags []*entity.ManualReviewFlag
	for rows.Next() {
		var f entity.ManualReviewFlag
		var reason, severity string
		if err := rows.Scan(
			&f.ID, &f.JobID, &f.TenantID, &reason, &severity, &f.Description,
			&f.FlaggedBy, &f.FlaggedAt, &f.Resolved, &f.ResolvedBy, &f.ResolvedAt,
		); err != nil {
			return nil, err
		}
		f.Reason = constants.ManualReviewReason(reason)
		f.Severity = constants.ErrorSeverity(severity)
		flags = append(flags, &f)
	}
	return flags, rows.Err()
}
