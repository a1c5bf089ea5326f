// Package pipeline sequences the five processing stages for one receipt job:
// retrieve the image, recognize text, parse fields, match catalog products,
// persist. Stages run strictly in order; a stage fault is classified, logged
// with an error id and aborts the rest, except matching, which degrades to
// unmatched line items.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
	"github.com/joseph-ayodele/receipt-pipeline/internal/imagestore"
	"github.com/joseph-ayodele/receipt-pipeline/internal/matching"
	"github.com/joseph-ayodele/receipt-pipeline/internal/parsing"
	"github.com/joseph-ayodele/receipt-pipeline/internal/recognition"
	"github.com/joseph-ayodele/receipt-pipeline/internal/repository"
	"github.com/joseph-ayodele/receipt-pipeline/internal/validation"
)

// Processor coordinates the five pipeline stages for one job.
type Processor struct {
	logger     *slog.Logger
	thresholds common.Thresholds
	images     imagestore.Store
	recognizer recognition.TextExtractor
	parser     parsing.FieldParser
	matcher    matching.ProductMatcher
	jobsRepo   repository.JobRepository
	receipts   repository.ReceiptRepository
	candidates repository.MatchCandidateRepository
	validator  *validation.Service
}

func NewProcessor(
	logger *slog.Logger,
	thresholds common.Thresholds,
	images imagestore.Store,
	recognizer recognition.TextExtractor,
	parser parsing.FieldParser,
	matcher matching.ProductMatcher,
	jobsRepo repository.JobRepository,
	receipts repository.ReceiptRepository,
	candidates repository.MatchCandidateRepository,
	validator *validation.Service,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:     logger,
		thresholds: thresholds,
		images:     images,
		recognizer: recognizer,
		parser:     parser,
		matcher:    matcher,
		jobsRepo:   jobsRepo,
		receipts:   receipts,
		candidates: candidates,
		validator:  validator,
	}
}

// Process runs the full pipeline for one job. A retried job re-enters here
// and re-runs every stage; no intermediate state survives between attempts.
func (p *Processor) Process(ctx context.Context, job *entity.ProcessingJob) (ProcessingResult, error) {
	started := time.Now()
	result := ProcessingResult{}
	ctx = common.WithJobID(common.WithTenantID(ctx, job.TenantID), job.ID)

	if err := p.jobsRepo.MarkProcessing(ctx, job.ID); err != nil {
		// Status writes are best-effort; the run itself is the record.
		p.logger.Warn("pipeline.processing_status_dropped", "job_id", job.ID, "error", err)
	}
	p.logger.Info("pipeline.start", "job_id", job.ID, "tenant_id", job.TenantID, "retry_count", job.RetryCount)

	// 1) retrieve
	stageStart := time.Now()
	image, err := p.retrieve(ctx, job)
	result.Stats.record(constants.StageRetrieve, time.Since(stageStart))
	if err != nil {
		return p.fail(ctx, job, constants.StageRetrieve, err, &result, started)
	}

	// 2) recognize
	stageStart = time.Now()
	recognized, err := p.recognizer.ExtractText(ctx, image, recognition.Options{
		Model:              job.Options.OCRModel,
		ExtractCoordinates: true,
	})
	result.Stats.record(constants.StageRecognize, time.Since(stageStart))
	if err != nil {
		return p.fail(ctx, job, constants.StageRecognize, err, &result, started)
	}
	p.logger.Debug("pipeline.recognize.ok",
		"job_id", job.ID, "text_bytes", len(recognized.Text), "confidence", recognized.Confidence)

	// 3) parse
	stageStart = time.Now()
	data, err := p.parser.Parse(ctx, recognized.Text, job.Options.ParsingStrategy, recognized.Blocks)
	result.Stats.record(constants.StageParse, time.Since(stageStart))
	if err != nil {
		return p.fail(ctx, job, constants.StageParse, err, &result, started)
	}
	result.ReceiptData = &data

	// Validation findings never abort; they debit confidence and may demand
	// review.
	vres := p.validator.ValidateReceiptData(&data, validation.Context{
		JobID:    job.ID,
		TenantID: job.TenantID,
		Options:  job.Options,
	})

	// 4) match. The one stage that degrades instead of aborting: an
	// unmatched receipt is still useful to a reviewer.
	stageStart = time.Now()
	matchResults := p.match(ctx, job, &data, &result)
	result.Stats.record(constants.StageMatch, time.Since(stageStart))

	// 5) persist
	stageStart = time.Now()
	receiptID, err := p.persist(ctx, job, &data, matchResults)
	result.Stats.record(constants.StagePersist, time.Since(stageStart))
	if err != nil {
		return p.fail(ctx, job, constants.StagePersist, err, &result, started)
	}
	result.ReceiptID = &receiptID
	result.Stats.Total = time.Since(started)

	overall := data.Confidence.Overall
	if vres.Confidence < overall {
		overall = vres.Confidence
	}
	result.Success = true
	result.RequiresManualReview = overall < p.thresholds.ReviewConfidence ||
		job.Options.RequireManualReview ||
		vres.RequiresManualReview

	if err := p.jobsRepo.MarkTerminal(ctx, job.ID, constants.JobStatusCompleted, nil); err != nil {
		p.logger.Warn("pipeline.completed_status_dropped", "job_id", job.ID, "error", err)
	}
	if result.RequiresManualReview {
		p.flagReview(ctx, job, overall, &vres)
	}

	p.logger.Info("pipeline.finished",
		"job_id", job.ID,
		"receipt_id", receiptID,
		"line_items", len(data.LineItems),
		"confidence", overall,
		"needs_review", result.RequiresManualReview,
		"elapsed_ms", result.Stats.Total.Milliseconds(),
	)
	return result, nil
}

// retrieve fetches the source image and verifies it against the upload
// metadata.
func (p *Processor) retrieve(ctx context.Context, job *entity.ProcessingJob) ([]byte, error) {
	image, err := p.images.Fetch(ctx, job.TenantID, job.ImageKey)
	if err != nil {
		return nil, err
	}
	if job.Upload.Checksum != nil && *job.Upload.Checksum != "" {
		if got := imagestore.ChecksumHex(image); got != *job.Upload.Checksum {
			return nil, fmt.Errorf("image checksum mismatch: got %s want %s", got, *job.Upload.Checksum)
		}
	}
	return image, nil
}

// match runs the matching adapter and applies its results to the line items.
// Adapter faults are logged and swallowed; items stay unmatched.
func (p *Processor) match(ctx context.Context, job *entity.ProcessingJob, data *entity.StructuredReceiptData, result *ProcessingResult) []matching.MatchResult {
	if len(data.LineItems) == 0 {
		return nil
	}

	matchResults, err := p.matcher.Match(ctx, data.LineItems, job.TenantID, matching.Options{
		SimilarityThreshold: job.Options.MatchingThreshold,
		MaxMatches:          5,
		UseAliases:          true,
	})
	if err != nil {
		errorID := p.logStageError(ctx, job, constants.StageMatch, err, result)
		p.logger.Warn("pipeline.match.degraded",
			"job_id", job.ID, "error_id", errorID, "error", err)
		return nil
	}

	for _, mr := range matchResults {
		if mr.ItemIndex < 0 || mr.ItemIndex >= len(data.LineItems) {
			continue
		}
		item := &data.LineItems[mr.ItemIndex]
		if mr.BestMatch != nil {
			productID := mr.BestMatch.ProductID
			confidence := mr.BestMatch.Confidence
			item.MatchedProductID = &productID
			item.MatchConfidence = &confidence
		}
		if mr.NeedsReview {
			item.NeedsReview = true
		}
	}
	return matchResults
}

// persist stores the receipt and, for ambiguous matches only, the candidate
// rows a reviewer needs to disambiguate.
func (p *Processor) persist(ctx context.Context, job *entity.ProcessingJob, data *entity.StructuredReceiptData, matchResults []matching.MatchResult) (uuid.UUID, error) {
	receiptID, err := p.receipts.StoreReceipt(ctx, job, data)
	if err != nil {
		return uuid.Nil, err
	}

	var ambiguous []matching.MatchResult
	for _, mr := range matchResults {
		if mr.Ambiguous(p.thresholds.ReviewConfidence) {
			ambiguous = append(ambiguous, mr)
		}
	}
	if len(ambiguous) > 0 {
		if err := p.candidates.StoreCandidates(ctx, receiptID, job.TenantID, ambiguous); err != nil {
			return uuid.Nil, err
		}
	}
	return receiptID, nil
}

// fail classifies and logs the stage fault, records the FAILED job state and
// returns the aborted result. A failed job always demands review.
func (p *Processor) fail(ctx context.Context, job *entity.ProcessingJob, stage constants.Stage, err error, result *ProcessingResult, started time.Time) (ProcessingResult, error) {
	errorID := p.logStageError(ctx, job, stage, err, result)
	result.Stats.Total = time.Since(started)
	result.Success = false
	result.RequiresManualReview = true

	// The FAILED transition belongs here, not in the error log: a degraded
	// stage also logs errors while its run goes on to complete.
	msg := fmt.Sprintf("%s stage failed [error id: %s]", stage, errorID)
	p.jobsRepo.UpdateStatus(ctx, job.ID, constants.JobStatusFailed, &msg)

	p.logger.Error("pipeline.stage.failed",
		"job_id", job.ID, "stage", stage, "error_id", errorID, "error", err)
	return *result, &StageError{Stage: stage, ErrorID: errorID, Err: err}
}

func (p *Processor) logStageError(ctx context.Context, job *entity.ProcessingJob, stage constants.Stage, err error, result *ProcessingResult) uuid.UUID {
	category, severity := validation.Classify(stage, err)
	details := err.Error()
	jobID := job.ID
	tenantID := job.TenantID
	errorID := p.validator.LogProcessingError(ctx, entity.ProcessingError{
		JobID:    &jobID,
		TenantID: &tenantID,
		Category: category,
		Severity: severity,
		Stage:    stage,
		Code:     fmt.Sprintf("%s_FAILED", category),
		Message:  fmt.Sprintf("%s stage failed", stage),
		Details:  &details,
		Context: &entity.ProcessingContext{
			Stage:      stage,
			ImageKey:   job.ImageKey,
			OCRModel:   job.Options.OCRModel,
			Strategy:   string(job.Options.ParsingStrategy),
			RetryCount: job.RetryCount,
		},
	})
	result.ErrorIDs = append(result.ErrorIDs, errorID)
	return errorID
}

// flagReview records the REQUIRES_REVIEW status and opens a review flag for
// a job that completed below the confidence bar (or at the submitter's
// request). Best-effort: the processing result already says review is
// needed.
func (p *Processor) flagReview(ctx context.Context, job *entity.ProcessingJob, confidence float64, vres *entity.ValidationResult) {
	p.jobsRepo.UpdateStatus(ctx, job.ID, constants.JobStatusRequiresReview, nil)

	reason := constants.ReviewLowConfidence
	description := fmt.Sprintf("overall confidence %.2f below %.2f", confidence, p.thresholds.ReviewConfidence)
	switch {
	case job.Options.RequireManualReview:
		reason = constants.ReviewUserRequested
		description = "review requested at submission"
	case vres.HasWarning(validation.CodeTotalMismatch):
		reason = constants.ReviewAmountMismatch
		description = "line item totals disagree with the declared receipt total"
	case vres.HasError(validation.CodeVendorRequired):
		reason = constants.ReviewVendorUnknown
		description = "vendor could not be extracted"
	}
	p.validator.FlagForReview(ctx, job.ID, job.TenantID, reason, constants.SeverityMedium, description)
}
