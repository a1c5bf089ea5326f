package constants

// ErrorCategory names the subsystem a processing error originated in.
type ErrorCategory string

const (
	CategoryUpload     ErrorCategory = "UPLOAD"
	CategoryOCR        ErrorCategory = "OCR"
	CategoryParsing    ErrorCategory = "PARSING"
	CategoryMatching   ErrorCategory = "MATCHING"
	CategoryStorage    ErrorCategory = "STORAGE"
	CategoryValidation ErrorCategory = "VALIDATION"
	CategorySystem     ErrorCategory = "SYSTEM"
)

// ErrorSeverity ranks processing errors for escalation.
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "LOW"
	SeverityMedium   ErrorSeverity = "MEDIUM"
	SeverityHigh     ErrorSeverity = "HIGH"
	SeverityCritical ErrorSeverity = "CRITICAL"
)

// Escalates reports whether an error of this severity must open a manual
// review flag when logged.
func (s ErrorSeverity) Escalates() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Stage names the five sequential pipeline steps. Stored verbatim in
// processing_error rows.
type Stage string

const (
	StageRetrieve  Stage = "retrieve"
	StageRecognize Stage = "recognize"
	StageParse     Stage = "parse"
	StageMatch     Stage = "match"
	StagePersist   Stage = "persist"
)

var allStages = []Stage{StageRetrieve, StageRecognize, StageParse, StageMatch, StagePersist}

// Stages returns the pipeline stages in execution order.
func Stages() []Stage {
	out := make([]Stage, len(allStages))
	copy(out, allStages)
	return out
}

// CategoryForStage maps a pipeline stage to the error category its faults
// are filed under.
func CategoryForStage(stage Stage) ErrorCategory {
	switch stage {
	case StageRetrieve:
		return CategoryUpload
	case StageRecognize:
		return CategoryOCR
	case StageParse:
		return CategoryParsing
	case StageMatch:
		return CategoryMatching
	case StagePersist:
		return CategoryStorage
	default:
		return CategorySystem
	}
}
