package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
	"github.com/joseph-ayodele/receipt-pipeline/internal/imagestore"
)

type ReceiptRepository interface {
	// StoreReceipt writes the receipt header and its line items in one
	// transaction and returns the new receipt id. The job's tenant scope is
	// verified immediately before the write. Raw OCR text is deliberately
	// absent from the stored columns.
	StoreReceipt(ctx context.Context, job *entity.ProcessingJob, data *entity.StructuredReceiptData) (uuid.UUID, error)
	// ListReceipts returns stored headers for a tenant, optionally windowed
	// by transaction date (inclusive).
	ListReceipts(ctx context.Context, tenantID uuid.UUID, fromDate, toDate *time.Time) ([]*entity.ReceiptRecord, error)
}

type receiptRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewReceiptRepository(pool *pgxpool.Pool, logger *slog.Logger) ReceiptRepository {
	return &receiptRepository{pool: pool, logger: logger}
}

func (r *receiptRepository) StoreReceipt(ctx context.Context, job *entity.ProcessingJob, data *entity.StructuredReceiptData) (uuid.UUID, error) {
	// Tenant guard directly before the write, not at enqueue time.
	if err := imagestore.CheckTenantKey(job.TenantID, job.ImageKey); err != nil {
		r.logger.Error("receipt store refused", "job_id", job.ID, "tenant_id", job.TenantID, "error", err)
		return uuid.Nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	receiptID := uuid.New()
	var vendorName *string
	var vendorConfidence *float64
	if data.Vendor != nil {
		vendorName = &data.Vendor.Name
		vendorConfidence = &data.Vendor.Confidence
	}

	const insertHeader = `
		INSERT INTO receipt (
			id, tenant_id, job_id, vendor_name, vendor_confidence,
			tx_date, total, subtotal, tax,
			parse_confidence, model_name, parsing_strategy, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err = tx.Exec(ctx, insertHeader,
		receiptID, job.TenantID, job.ID, vendorName, vendorConfidence,
		data.TxDate, data.Total, data.Subtotal, data.Tax,
		data.Confidence.Overall, data.Metadata.ModelName, string(data.Metadata.Strategy), time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("receipt insert failed", "job_id", job.ID, "error", err)
		return uuid.Nil, fmt.Errorf("insert receipt: %w", err)
	}

	const insertItem = `
		INSERT INTO receipt_line_item (
			id, receipt_id, tenant_id, position, description,
			quantity, unit_price, total_price, confidence,
			matched_product_id, match_confidence, needs_review
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	for i, item := range data.LineItems {
		// item.RawText never reaches an INSERT.
		_, err = tx.Exec(ctx, insertItem,
			uuid.New(), receiptID, job.TenantID, i, item.Description,
			item.Quantity, item.UnitPrice, item.TotalPrice, item.Confidence,
			item.MatchedProductID, item.MatchConfidence, item.NeedsReview,
		)
		if err != nil {
			r.logger.Error("line item insert failed", "job_id", job.ID, "position", i, "error", err)
			return uuid.Nil, fmt.Errorf("insert line item %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit receipt: %w", err)
	}

	r.logger.Info("receipt stored", "job_id", job.ID, "receipt_id", receiptID, "line_items", len(data.LineItems))
	return receiptID, nil
}

func (r *receiptRepository) ListReceipts(ctx context.Context, tenantID uuid.UUID, fromDate, toDate *time.Time) ([]*entity.ReceiptRecord, error) {
	q := `
		SELECT r.id, r.tenant_id, r.job_id, r.vendor_name, r.tx_date,
		       r.total, r.subtotal, r.tax, r.parse_confidence, r.created_at,
		       (SELECT count(*) FROM receipt_line_item i WHERE i.receipt_id = r.id) AS line_item_count
		FROM receipt r
		WHERE r.tenant_id = $1`
	args := []any{tenantID}
	if fromDate != nil {
		args = append(args, *fromDate)
		q += fmt.Sprintf(" AND r.tx_date >= $%d", len(args))
	}
	if toDate != nil {
		args = append(args, *toDate)
		q += fmt.Sprintf(" AND r.tx_date <= $%d", len(args))
	}
	q += " ORDER BY r.tx_date, r.created_at"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.Error("failed to list receipts", "tenant_id", tenantID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var recs []*entity.ReceiptRecord
	for rows.Next() {
		var rec entity.ReceiptRecord
		if err := rows.Scan(
			&rec.ID, &rec.TenantID, &rec.JobID, &rec.VendorName, &rec.TxDate,
			&rec.Total, &rec.Subtotal, &rec.Tax, &rec.ParseConfidence, &rec.CreatedAt,
			&rec.LineItemCount,
		); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}
