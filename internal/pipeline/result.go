package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// StageStats aggregates per-stage timing for one pipeline run.
type StageStats struct {
	Retrieve  time.Duration `json:"retrieve"`
	Recognize time.Duration `json:"recognize"`
	Parse     time.Duration `json:"parse"`
	Match     time.Duration `json:"match"`
	Persist   time.Duration `json:"persist"`
	Total     time.Duration `json:"total"`
}

func (s *StageStats) record(stage constants.Stage, d time.Duration) {
	switch stage {
	case constants.StageRetrieve:
		s.Retrieve = d
	case constants.StageRecognize:
		s.Recognize = d
	case constants.StageParse:
		s.Parse = d
	case constants.StageMatch:
		s.Match = d
	case constants.StagePersist:
		s.Persist = d
	}
}

// ProcessingResult is the orchestrator's answer for one job run.
type ProcessingResult struct {
	Success              bool
	ReceiptID            *uuid.UUID
	ReceiptData          *entity.StructuredReceiptData
	ErrorIDs             []uuid.UUID
	Stats                StageStats
	RequiresManualReview bool
}

// StageError is the typed failure an aborting stage surfaces. ErrorID is the
// logged error's id, the only diagnostic a submitter ever sees.
type StageError struct {
	Stage   constants.Stage
	ErrorID uuid.UUID
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed [error id: %s]: %v", e.Stage, e.ErrorID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
