// Package validation runs business-reasonableness checks on parsed receipt
// data, scores confidence, and owns the error log with its manual-review
// escalation rules.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
	"github.com/joseph-ayodele/receipt-pipeline/internal/repository"
)

// Validation rule codes. Stable strings, referenced by reviewers and tests.
const (
	CodeVendorRequired    = "VENDOR_REQUIRED"
	CodeDateRequired      = "DATE_REQUIRED"
	CodeDateUnreasonable  = "DATE_UNREASONABLE"
	CodeTotalRequired     = "TOTAL_REQUIRED"
	CodeTotalOutOfRange   = "TOTAL_OUT_OF_RANGE"
	CodeLineItemsRequired = "LINE_ITEMS_REQUIRED"
	CodeTooManyLineItems  = "TOO_MANY_LINE_ITEMS"
	CodeTotalMismatch     = "TOTAL_MISMATCH"
	CodeLowFieldOCR       = "LOW_FIELD_OCR_CONFIDENCE"
	CodeReceiptStale      = "RECEIPT_STALE"
)

// Confidence debits per violation class.
const (
	penaltyVendorMissing = 0.30
	penaltyDateMissing   = 0.30
	penaltyTotalInvalid  = 0.40
	penaltyNoLineItems   = 0.40
	penaltyMismatch      = 0.20
	penaltyDateWarning   = 0.10
	penaltyLowFieldOCR   = 0.05
	lowFieldOCRThreshold = 0.50
)

// Context carries the job-scoped inputs a validation pass needs beyond the
// parsed data itself.
type Context struct {
	JobID    uuid.UUID
	TenantID uuid.UUID
	Options  entity.ProcessingOptions
}

// Service validates parsed receipts and records processing errors.
type Service struct {
	logger     *slog.Logger
	thresholds common.Thresholds
	errorsRepo repository.ErrorLogRepository
	reviewRepo repository.ReviewRepository
	now        func() time.Time
}

func NewService(
	logger *slog.Logger,
	thresholds common.Thresholds,
	errorsRepo repository.ErrorLogRepository,
	reviewRepo repository.ReviewRepository,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:     logger,
		thresholds: thresholds,
		errorsRepo: errorsRepo,
		reviewRepo: reviewRepo,
		now:        time.Now,
	}
}

// ValidateReceiptData applies the primary field-presence and cross-check
// rules. Deterministic: the same data and clock yield the same result.
func (s *Service) ValidateReceiptData(data *entity.StructuredReceiptData, vctx Context) entity.ValidationResult {
	res := entity.ValidationResult{
		IsValid:    true,
		Errors:     []entity.ValidationError{},
		Warnings:   []entity.ValidationWarning{},
		Confidence: 1.0,
	}
	now := s.now()

	// Field presence.
	if data.Vendor == nil || data.Vendor.Name == "" {
		s.addError(&res, "vendor", CodeVendorRequired, "vendor name could not be extracted", constants.SeverityHigh,
			"re-scan the receipt or enter the vendor manually")
		res.Confidence -= penaltyVendorMissing
	}
	if data.TxDate == nil {
		s.addError(&res, "tx_date", CodeDateRequired, "transaction date could not be extracted", constants.SeverityHigh,
			"enter the purchase date manually")
		res.Confidence -= penaltyDateMissing
	} else if data.TxDate.Before(now.AddDate(-1, 0, 0)) || data.TxDate.After(now.AddDate(0, 0, 7)) {
		res.Warnings = append(res.Warnings, entity.ValidationWarning{
			Field:   "tx_date",
			Code:    CodeDateUnreasonable,
			Message: fmt.Sprintf("transaction date %s is outside the plausible window", data.TxDate.Format("2006-01-02")),
		})
		res.Confidence -= penaltyDateWarning
	}
	if data.Total == nil || *data.Total <= 0 {
		s.addError(&res, "total", CodeTotalRequired, "receipt total is missing or not positive", constants.SeverityHigh,
			"verify the total on the receipt image")
		res.Confidence -= penaltyTotalInvalid
	} else if *data.Total >= s.thresholds.TotalCeiling {
		s.addError(&res, "total", CodeTotalOutOfRange,
			fmt.Sprintf("receipt total %d exceeds the sanity ceiling %d", *data.Total, s.thresholds.TotalCeiling),
			constants.SeverityMedium, "")
		res.Confidence -= penaltyTotalInvalid
	}
	if len(data.LineItems) == 0 {
		s.addError(&res, "line_items", CodeLineItemsRequired, "no line items were extracted", constants.SeverityHigh,
			"re-scan with a higher quality image")
		res.Confidence -= penaltyNoLineItems
	}

	// Business cross-check: line totals vs declared total. A mismatch is a
	// warning, not an error; one bad OCR digit should not discard an
	// otherwise good receipt.
	if data.Total != nil && *data.Total > 0 {
		if sum, counted := data.LineItemSum(); counted > 0 {
			diff := float64(sum-*data.Total) / float64(*data.Total)
			if diff < 0 {
				diff = -diff
			}
			if diff > s.thresholds.MismatchTolerance {
				res.Warnings = append(res.Warnings, entity.ValidationWarning{
					Field:   "total",
					Code:    CodeTotalMismatch,
					Message: fmt.Sprintf("line items sum to %d but receipt declares %d", sum, *data.Total),
				})
				res.Confidence -= penaltyMismatch
			}
		}
	}

	// Per-field OCR confidence debits.
	for _, fc := range []float64{data.Confidence.Vendor, data.Confidence.Date, data.Confidence.Total} {
		if fc > 0 && fc < lowFieldOCRThreshold {
			res.Warnings = append(res.Warnings, entity.ValidationWarning{
				Field:   "confidence",
				Code:    CodeLowFieldOCR,
				Message: fmt.Sprintf("per-field OCR confidence %.2f below %.2f", fc, lowFieldOCRThreshold),
			})
			res.Confidence -= penaltyLowFieldOCR
		}
	}

	if res.Confidence < 0 {
		res.Confidence = 0
	}
	res.IsValid = len(res.Errors) == 0
	res.RequiresManualReview = !res.IsValid ||
		res.Confidence < s.thresholds.ValidationFloor ||
		res.HasWarning(CodeTotalMismatch) ||
		res.HasWarning(CodeDateUnreasonable) ||
		vctx.Options.RequireManualReview

	s.logger.Debug("receipt data validated",
		"job_id", vctx.JobID,
		"errors", len(res.Errors),
		"warnings", len(res.Warnings),
		"confidence", res.Confidence,
		"needs_review", res.RequiresManualReview,
	)
	return res
}

// CheckDataReasonableness is an independent coarse rule set, kept separate
// from field-level validation so policy tightening touches only one place.
func (s *Service) CheckDataReasonableness(data *entity.StructuredReceiptData) entity.ValidationResult {
	res := entity.ValidationResult{
		IsValid:    true,
		Errors:     []entity.ValidationError{},
		Warnings:   []entity.ValidationWarning{},
		Confidence: 1.0,
	}
	now := s.now()

	if data.Total != nil && (*data.Total < 0 || *data.Total > s.thresholds.TotalCeiling) {
		s.addError(&res, "total", CodeTotalOutOfRange,
			fmt.Sprintf("total %d outside [0, %d]", *data.Total, s.thresholds.TotalCeiling),
			constants.SeverityMedium, "")
		res.Confidence -= penaltyTotalInvalid
	}
	if n := len(data.LineItems); n < 1 {
		s.addError(&res, "line_items", CodeLineItemsRequired, "expected at least one line item", constants.SeverityMedium, "")
		res.Confidence -= penaltyNoLineItems
	} else if n > s.thresholds.MaxLineItems {
		s.addError(&res, "line_items", CodeTooManyLineItems,
			fmt.Sprintf("%d line items exceeds the plausible maximum %d", n, s.thresholds.MaxLineItems),
			constants.SeverityMedium, "")
		res.Confidence -= penaltyNoLineItems
	}
	if data.TxDate != nil && data.TxDate.Before(now.Add(-s.thresholds.ReasonableWindow)) {
		res.Warnings = append(res.Warnings, entity.ValidationWarning{
			Field:   "tx_date",
			Code:    CodeReceiptStale,
			Message: fmt.Sprintf("receipt dated %s is older than the reasonable window", data.TxDate.Format("2006-01-02")),
		})
		res.Confidence -= penaltyDateWarning
	}

	if res.Confidence < 0 {
		res.Confidence = 0
	}
	res.IsValid = len(res.Errors) == 0
	res.RequiresManualReview = !res.IsValid || res.Confidence < s.thresholds.ValidationFloor
	return res
}

// LogProcessingError assigns an id and timestamp, appends the error to the
// log and escalates high-severity errors to manual review. Job and tenant
// identity fall back to the request context when the caller did not set
// them. Status transitions stay with the orchestrator: a logged error may
// belong to a run that is still going. All persistence here is best-effort:
// failures go to the injected logger, never to the caller.
func (s *Service) LogProcessingError(ctx context.Context, perr entity.ProcessingError) uuid.UUID {
	if perr.ID == uuid.Nil {
		perr.ID = uuid.New()
	}
	if perr.OccurredAt.IsZero() {
		perr.OccurredAt = s.now().UTC()
	}
	if perr.JobID == nil {
		if jobID, ok := common.JobIDFromContext(ctx); ok {
			perr.JobID = &jobID
		}
	}
	if perr.TenantID == nil {
		if tenantID, ok := common.TenantIDFromContext(ctx); ok {
			perr.TenantID = &tenantID
		}
	}

	if err := s.errorsRepo.Insert(ctx, &perr); err != nil {
		// Audit is best-effort; the job outcome already carries the error id.
		s.logger.Error("error log write dropped",
			"error_id", perr.ID, "category", perr.Category, "severity", perr.Severity, "error", err)
	}

	if perr.Severity.Escalates() {
		s.escalate(ctx, &perr)
	}

	s.logger.Warn("processing error logged",
		"error_id", perr.ID,
		"job_id", perr.JobID,
		"category", perr.Category,
		"severity", perr.Severity,
		"stage", perr.Stage,
		"code", perr.Code,
	)
	return perr.ID
}

// FlagForReview opens a system review flag for a job. Best-effort, same as
// the rest of the audit trail.
func (s *Service) FlagForReview(ctx context.Context, jobID, tenantID uuid.UUID, reason constants.ManualReviewReason, severity constants.ErrorSeverity, description string) {
	flag := &entity.ManualReviewFlag{
		ID:          uuid.New(),
		JobID:       jobID,
		TenantID:    tenantID,
		Reason:      reason,
		Severity:    severity,
		Description: description,
		FlaggedBy:   "system",
		FlaggedAt:   s.now().UTC(),
	}
	if err := s.reviewRepo.AddFlag(ctx, flag); err != nil {
		s.logger.Error("review flag dropped", "job_id", jobID, "reason", reason, "error", err)
	}
}

func (s *Service) escalate(ctx context.Context, perr *entity.ProcessingError) {
	if perr.JobID == nil || perr.TenantID == nil {
		return
	}
	flag := &entity.ManualReviewFlag{
		ID:          uuid.New(),
		JobID:       *perr.JobID,
		TenantID:    *perr.TenantID,
		Reason:      constants.ReviewReasonForCategory(perr.Category),
		Severity:    perr.Severity,
		Description: fmt.Sprintf("auto-escalated from %s error %s", perr.Category, perr.ID),
		FlaggedBy:   "system",
		FlaggedAt:   s.now().UTC(),
	}
	if err := s.reviewRepo.AddFlag(ctx, flag); err != nil {
		s.logger.Error("review escalation dropped", "job_id", perr.JobID, "error_id", perr.ID, "error", err)
	}
}

func (s *Service) addError(res *entity.ValidationResult, field, code, message string, severity constants.ErrorSeverity, fix string) {
	ve := entity.ValidationError{
		Field:    field,
		Code:     code,
		Message:  message,
		Severity: severity,
	}
	if fix != "" {
		ve.SuggestedFix = &fix
	}
	res.Errors = append(res.Errors, ve)
}
