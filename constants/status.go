package constants

// JobStatus is the canonical status for rows in processing_job.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued         JobStatus = "QUEUED"          // waiting on the queue
	JobStatusProcessing     JobStatus = "PROCESSING"      // pipeline in progress
	JobStatusCompleted      JobStatus = "COMPLETED"       // all five stages succeeded
	JobStatusFailed         JobStatus = "FAILED"          // aborting stage failure; may still be retried
	JobStatusRequiresReview JobStatus = "REQUIRES_REVIEW" // flagged for a human reviewer
)

// IsTerminal reports whether no further pipeline run will mutate the job.
// FAILED is excluded: the retry controller may return a FAILED job to
// PROCESSING until the retry ceiling is exhausted.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusRequiresReview
}
