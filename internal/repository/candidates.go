package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/receipt-pipeline/internal/matching"
)

type MatchCandidateRepository interface {
	// StoreCandidates records alternate catalog matches for ambiguous line
	// items so a reviewer can pick. Exact, confident matches produce no rows.
	StoreCandidates(ctx context.Context, receiptID uuid.UUID, tenantID uuid.UUID, results []matching.MatchResult) error
}

type matchCandidateRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewMatchCandidateRepository(pool *pgxpool.Pool, logger *slog.Logger) MatchCandidateRepository {
	return &matchCandidateRepository{pool: pool, logger: logger}
}

func (r *matchCandidateRepository) StoreCandidates(ctx context.Context, receiptID uuid.UUID, tenantID uuid.UUID, results []matching.MatchResult) error {
	const q = `
		INSERT INTO match_candidate (
			id, receipt_id, tenant_id, item_index, rank,
			product_id, product_name, similarity, confidence, match_type, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	stored := 0
	now := time.Now().UTC()
	for _, res := range results {
		for rank, m := range res.Matches {
			_, err := r.pool.Exec(ctx, q,
				uuid.New(), receiptID, tenantID, res.ItemIndex, rank,
				m.ProductID, m.ProductName, m.Similarity, m.Confidence, m.MatchType, now,
			)
			if err != nil {
				r.logger.Error("match candidate insert failed", "receipt_id", receiptID, "item_index", res.ItemIndex, "error", err)
				return fmt.Errorf("insert match candidate: %w", err)
			}
			stored++
		}
	}

	r.logger.Info("match candidates stored", "receipt_id", receiptID, "count", stored)
	return nil
}
