package constants

// ManualReviewReason explains why a job was routed to a human reviewer.
type ManualReviewReason string

const (
	ReviewLowConfidence     ManualReviewReason = "LOW_CONFIDENCE"
	ReviewParsingFailed     ManualReviewReason = "PARSING_FAILED"
	ReviewNoProductMatch    ManualReviewReason = "NO_PRODUCT_MATCH"
	ReviewDataInconsistency ManualReviewReason = "DATA_INCONSISTENCY"
	ReviewOCRQualityPoor    ManualReviewReason = "OCR_QUALITY_POOR"
	ReviewVendorUnknown     ManualReviewReason = "VENDOR_UNKNOWN"
	ReviewAmountMismatch    ManualReviewReason = "AMOUNT_MISMATCH"
	ReviewUserRequested     ManualReviewReason = "USER_REQUESTED"
)

// ReviewReasonForCategory maps an error category to the review reason used
// when a high-severity error auto-escalates.
func ReviewReasonForCategory(cat ErrorCategory) ManualReviewReason {
	switch cat {
	case CategoryOCR:
		return ReviewOCRQualityPoor
	case CategoryParsing:
		return ReviewParsingFailed
	case CategoryMatching:
		return ReviewNoProductMatch
	case CategoryValidation:
		return ReviewDataInconsistency
	default:
		return ReviewLowConfidence
	}
}
