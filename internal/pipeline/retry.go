package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
	"github.com/joseph-ayodele/receipt-pipeline/internal/repository"
	"github.com/joseph-ayodele/receipt-pipeline/internal/validation"
)

// RetryDecision tells the queue worker what to do with a failed delivery.
type RetryDecision struct {
	// Redeliver requeues the job after Delay. When false the message is
	// acknowledged and dropped: the job row, not the queue, is the system
	// of record for failed work.
	Redeliver bool
	Delay     time.Duration
}

// RetryController owns the bounded backoff loop around the pipeline.
// Attempt delays walk the schedule; the persisted retry count is bumped
// before the delay so a crash mid-retry cannot buy an extra attempt.
type RetryController struct {
	logger    *slog.Logger
	jobsRepo  repository.JobRepository
	validator *validation.Service
	schedule  []time.Duration
	maxRetry  int
}

func NewRetryController(logger *slog.Logger, jobsRepo repository.JobRepository, validator *validation.Service, thresholds common.Thresholds) *RetryController {
	if logger == nil {
		logger = slog.Default()
	}
	schedule := thresholds.RetrySchedule
	if len(schedule) == 0 {
		schedule = []time.Duration{1 * time.Second, 5 * time.Second, 15 * time.Second}
	}
	maxRetry := thresholds.MaxRetries
	if maxRetry <= 0 {
		maxRetry = 3
	}
	return &RetryController{
		logger:    logger,
		jobsRepo:  jobsRepo,
		validator: validator,
		schedule:  schedule,
		maxRetry:  maxRetry,
	}
}

// Exhausted reports whether the job has no retries left.
func (c *RetryController) Exhausted(job *entity.ProcessingJob) bool {
	return job.RetryCount >= c.maxRetry
}

// AlreadySpent reports whether a delivery is past the retry ceiling. The
// worker checks this before invoking the pipeline. Strictly greater: a job
// at the ceiling still owns its final run, whose failure lands in OnFailure
// and gets the permanent FAILED outcome.
func (c *RetryController) AlreadySpent(job *entity.ProcessingJob) bool {
	return job.RetryCount > c.maxRetry
}

// OnFailure records one failed attempt and decides between redelivery and a
// permanent FAILED outcome.
func (c *RetryController) OnFailure(ctx context.Context, job *entity.ProcessingJob) RetryDecision {
	if c.Exhausted(job) {
		c.giveUp(ctx, job)
		return RetryDecision{Redeliver: false}
	}

	count, err := c.jobsRepo.IncrementRetryCount(ctx, job.ID)
	if err != nil {
		// Without a persisted increment a redelivery could retry forever;
		// fail permanently instead.
		c.logger.Error("retry increment failed, abandoning retries", "job_id", job.ID, "error", err)
		c.giveUp(ctx, job)
		return RetryDecision{Redeliver: false}
	}
	job.RetryCount = count

	if count > c.maxRetry {
		c.giveUp(ctx, job)
		return RetryDecision{Redeliver: false}
	}

	delay := c.schedule[len(c.schedule)-1]
	if count-1 < len(c.schedule) {
		delay = c.schedule[count-1]
	}
	c.logger.Info("job retry scheduled",
		"job_id", job.ID, "retry_count", count, "max_retries", c.maxRetry, "delay", delay)
	return RetryDecision{Redeliver: true, Delay: delay}
}

// giveUp pins the job at FAILED and opens a review flag; an exhausted job is
// never silently dropped.
func (c *RetryController) giveUp(ctx context.Context, job *entity.ProcessingJob) {
	msg := fmt.Sprintf("retry ceiling reached after %d attempts", job.RetryCount)
	c.jobsRepo.UpdateStatus(ctx, job.ID, constants.JobStatusFailed, &msg)
	c.validator.FlagForReview(ctx, job.ID, job.TenantID,
		constants.ReviewLowConfidence, constants.SeverityHigh,
		"automatic processing failed after all retries")
	c.logger.Warn("job retries exhausted", "job_id", job.ID, "retry_count", job.RetryCount)
}
