package validation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name         string
		stage        constants.Stage
		err          error
		wantCategory constants.ErrorCategory
		wantSeverity constants.ErrorSeverity
	}{
		{
			"recognize failure",
			constants.StageRecognize, errors.New("ocr service returned 502"),
			constants.CategoryOCR, constants.SeverityHigh,
		},
		{
			"parse failure",
			constants.StageParse, errors.New("parser service unavailable"),
			constants.CategoryParsing, constants.SeverityHigh,
		},
		{
			"match failure is degraded, not fatal",
			constants.StageMatch, errors.New("catalog timeout"),
			constants.CategoryMatching, constants.SeverityMedium,
		},
		{
			"persist failure",
			constants.StagePersist, errors.New("insert failed"),
			constants.CategoryStorage, constants.SeverityHigh,
		},
		{
			"tenant isolation violation is critical on any stage",
			constants.StagePersist, fmt.Errorf("key refused: %w", common.ErrTenantIsolation),
			constants.CategoryStorage, constants.SeverityCritical,
		},
		{
			"tenant isolation on retrieve",
			constants.StageRetrieve, fmt.Errorf("fetch: %w", common.ErrTenantIsolation),
			constants.CategoryUpload, constants.SeverityCritical,
		},
		{
			"caller cancellation",
			constants.StageRecognize, fmt.Errorf("extract: %w", context.Canceled),
			constants.CategoryOCR, constants.SeverityMedium,
		},
		{
			"validation error",
			constants.StageParse, fmt.Errorf("bad data: %w", common.ErrValidation),
			constants.CategoryValidation, constants.SeverityLow,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			category, severity := Classify(tc.stage, tc.err)
			assert.Equal(t, tc.wantCategory, category)
			assert.Equal(t, tc.wantSeverity, severity)
		})
	}
}
