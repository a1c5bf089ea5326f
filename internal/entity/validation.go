package entity

import "github.com/joseph-ayodele/receipt-pipeline/constants"

// ValidationError is a hard rule violation on parsed receipt data.
type ValidationError struct {
	Field        string                  `json:"field"`
	Code         string                  `json:"code"`
	Message      string                  `json:"message"`
	Severity     constants.ErrorSeverity `json:"severity"`
	SuggestedFix *string                 `json:"suggested_fix,omitempty"`
}

// ValidationWarning is a soft finding that debits confidence without
// invalidating the receipt.
type ValidationWarning struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult is computed fresh on every parse attempt and never
// persisted directly; only its consequences (flags, logged errors) are.
type ValidationResult struct {
	IsValid              bool                `json:"is_valid"`
	Errors               []ValidationError   `json:"errors"`
	Warnings             []ValidationWarning `json:"warnings"`
	Confidence           float64             `json:"confidence"` // [0,1]
	RequiresManualReview bool                `json:"requires_manual_review"`
}

// HasWarning reports whether a warning with the given code fired.
func (r *ValidationResult) HasWarning(code string) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// HasError reports whether an error with the given code fired.
func (r *ValidationResult) HasError(code string) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}
