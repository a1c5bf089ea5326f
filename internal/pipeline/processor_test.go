package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
	"github.com/joseph-ayodele/receipt-pipeline/internal/matching"
	"github.com/joseph-ayodele/receipt-pipeline/internal/recognition"
	"github.com/joseph-ayodele/receipt-pipeline/internal/validation"
)

// --- fakes -----------------------------------------------------------------

type fakeStore struct {
	data    map[string][]byte
	failure error
}

func (s *fakeStore) Fetch(_ context.Context, tenantID uuid.UUID, key string) ([]byte, error) {
	if s.failure != nil {
		return nil, s.failure
	}
	data, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("no image at %s", key)
	}
	return data, nil
}

type fakeExtractor struct {
	result  recognition.Result
	failure error
	calls   int
}

func (e *fakeExtractor) ExtractText(context.Context, []byte, recognition.Options) (recognition.Result, error) {
	e.calls++
	if e.failure != nil {
		return recognition.Result{}, e.failure
	}
	return e.result, nil
}

type fakeParser struct {
	data    entity.StructuredReceiptData
	failure error
	calls   int
}

func (p *fakeParser) Parse(context.Context, string, constants.ParsingStrategy, []recognition.TextBlock) (entity.StructuredReceiptData, error) {
	p.calls++
	if p.failure != nil {
		return entity.StructuredReceiptData{}, p.failure
	}
	return p.data, nil
}

type fakeMatcher struct {
	results []matching.MatchResult
	failure error
	calls   int
}

func (m *fakeMatcher) Match(context.Context, []entity.LineItemCandidate, uuid.UUID, matching.Options) ([]matching.MatchResult, error) {
	m.calls++
	if m.failure != nil {
		return nil, m.failure
	}
	return m.results, nil
}

type fakeJobRepo struct {
	processing []uuid.UUID
	terminal   []constants.JobStatus
	updates    []constants.JobStatus
	updateMsgs []string
	retryCount int
	incrErr    error
}

func (r *fakeJobRepo) GetByID(context.Context, uuid.UUID) (*entity.ProcessingJob, error) {
	return nil, nil
}

func (r *fakeJobRepo) MarkProcessing(_ context.Context, jobID uuid.UUID) error {
	r.processing = append(r.processing, jobID)
	return nil
}

func (r *fakeJobRepo) MarkTerminal(_ context.Context, _ uuid.UUID, status constants.JobStatus, _ *string) error {
	r.terminal = append(r.terminal, status)
	return nil
}

func (r *fakeJobRepo) IncrementRetryCount(context.Context, uuid.UUID) (int, error) {
	if r.incrErr != nil {
		return 0, r.incrErr
	}
	r.retryCount++
	return r.retryCount, nil
}

func (r *fakeJobRepo) UpdateStatus(_ context.Context, _ uuid.UUID, status constants.JobStatus, msg *string) {
	r.updates = append(r.updates, status)
	if msg != nil {
		r.updateMsgs = append(r.updateMsgs, *msg)
	}
}

type fakeReceiptRepo struct {
	stored  []*entity.StructuredReceiptData
	failure error
	id      uuid.UUID
}

func (r *fakeReceiptRepo) StoreReceipt(_ context.Context, _ *entity.ProcessingJob, data *entity.StructuredReceiptData) (uuid.UUID, error) {
	if r.failure != nil {
		return uuid.Nil, r.failure
	}
	r.stored = append(r.stored, data)
	return r.id, nil
}

func (r *fakeReceiptRepo) ListReceipts(context.Context, uuid.UUID, *time.Time, *time.Time) ([]*entity.ReceiptRecord, error) {
	return nil, nil
}

type fakeCandidateRepo struct {
	stored [][]matching.MatchResult
}

func (r *fakeCandidateRepo) StoreCandidates(_ context.Context, _ uuid.UUID, _ uuid.UUID, results []matching.MatchResult) error {
	r.stored = append(r.stored, results)
	return nil
}

type fakeErrorLog struct {
	inserted []*entity.ProcessingError
}

func (l *fakeErrorLog) Insert(_ context.Context, perr *entity.ProcessingError) error {
	cp := *perr
	l.inserted = append(l.inserted, &cp)
	return nil
}

func (l *fakeErrorLog) Resolve(context.Context, uuid.UUID, uuid.UUID) error { return nil }

type fakeReviewRepo struct {
	flags []*entity.ManualReviewFlag
}

func (r *fakeReviewRepo) AddFlag(_ context.Context, flag *entity.ManualReviewFlag) error {
	cp := *flag
	r.flags = append(r.flags, &cp)
	return nil
}

func (r *fakeReviewRepo) ResolveFlag(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (r *fakeReviewRepo) ListOpenFlags(context.Context, uuid.UUID) ([]*entity.ManualReviewFlag, error) {
	return nil, nil
}

// --- fixture ---------------------------------------------------------------

type fixture struct {
	processor  *Processor
	store      *fakeStore
	extractor  *fakeExtractor
	parser     *fakeParser
	matcher    *fakeMatcher
	jobs       *fakeJobRepo
	receipts   *fakeReceiptRepo
	candidates *fakeCandidateRepo
	errorLog   *fakeErrorLog
	reviews    *fakeReviewRepo
	job        *entity.ProcessingJob
}

func testThresholds() common.Thresholds {
	return common.Thresholds{
		ReviewConfidence:  0.70,
		ValidationFloor:   0.60,
		MismatchTolerance: 0.10,
		TotalCeiling:      1_000_000,
		MaxLineItems:      100,
		ReasonableWindow:  6 * 30 * 24 * time.Hour,
		MaxRetries:        3,
		RetrySchedule:     []time.Duration{time.Millisecond, 5 * time.Millisecond, 15 * time.Millisecond},
	}
}

func parsedReceipt() entity.StructuredReceiptData {
	total := int64(1250)
	price := int64(1250)
	txDate := time.Now().UTC().AddDate(0, 0, -2)
	return entity.StructuredReceiptData{
		Vendor: &entity.VendorInfo{Name: "Corner Grocery", Confidence: 0.95},
		TxDate: &txDate,
		Total:  &total,
		LineItems: []entity.LineItemCandidate{
			{Description: "Coffee beans 500g", TotalPrice: &price, Confidence: 0.91, RawText: "COFFEE BNS .5KG 12.50"},
		},
		Confidence: entity.ParseConfidence{Overall: 0.9, Vendor: 0.95, Date: 0.9, Total: 0.92, LineItems: 0.88},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	tenantID := uuid.New()
	imageKey := tenantID.String() + "/receipt-001.jpg"
	image := []byte("fake image bytes")

	f := &fixture{
		store:      &fakeStore{data: map[string][]byte{imageKey: image}},
		extractor:  &fakeExtractor{result: recognition.Result{Text: "COFFEE BNS .5KG 12.50", Confidence: 0.93}},
		parser:     &fakeParser{data: parsedReceipt()},
		matcher:    &fakeMatcher{},
		jobs:       &fakeJobRepo{},
		receipts:   &fakeReceiptRepo{id: uuid.New()},
		candidates: &fakeCandidateRepo{},
		errorLog:   &fakeErrorLog{},
		reviews:    &fakeReviewRepo{},
	}
	validator := validation.NewService(logger, testThresholds(), f.errorLog, f.reviews)
	f.processor = NewProcessor(logger, testThresholds(),
		f.store, f.extractor, f.parser, f.matcher,
		f.jobs, f.receipts, f.candidates, validator)

	f.job = &entity.ProcessingJob{
		ID:       uuid.New(),
		TenantID: tenantID,
		UserID:   uuid.New(),
		ImageKey: imageKey,
		Upload: entity.UploadMetadata{
			FileName:    "receipt-001.jpg",
			FileSize:    int64(len(image)),
			ContentType: "image/jpeg",
		},
		Options: entity.ProcessingOptions{
			OCRModel:          "standard-v2",
			ParsingStrategy:   constants.StrategyAdaptive,
			MatchingThreshold: 0.8,
		},
		Status:    constants.JobStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	return f
}

// --- tests -----------------------------------------------------------------

func TestProcessSuccess(t *testing.T) {
	f := newFixture(t)

	result, err := f.processor.Process(context.Background(), f.job)

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotNil(t, result.ReceiptID)
	assert.Equal(t, f.receipts.id, *result.ReceiptID)
	assert.False(t, result.RequiresManualReview)
	assert.Empty(t, result.ErrorIDs)

	assert.Equal(t, []uuid.UUID{f.job.ID}, f.jobs.processing)
	assert.Equal(t, []constants.JobStatus{constants.JobStatusCompleted}, f.jobs.terminal)
	assert.Empty(t, f.jobs.updates)
	require.Len(t, f.receipts.stored, 1)

	assert.GreaterOrEqual(t, result.Stats.Total, result.Stats.Retrieve)
	assert.NotZero(t, result.Stats.Total)
}

func TestProcessRecognizeFailureAbortsPipeline(t *testing.T) {
	f := newFixture(t)
	f.extractor.failure = errors.New("ocr service returned 502")

	result, err := f.processor.Process(context.Background(), f.job)

	require.Error(t, err)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, constants.StageRecognize, stageErr.Stage)
	assert.NotEqual(t, uuid.Nil, stageErr.ErrorID)

	assert.False(t, result.Success)
	assert.True(t, result.RequiresManualReview)
	assert.Equal(t, []uuid.UUID{stageErr.ErrorID}, result.ErrorIDs)

	// Downstream stages never ran.
	assert.Zero(t, f.parser.calls)
	assert.Zero(t, f.matcher.calls)
	assert.Empty(t, f.receipts.stored)

	// The fault was logged and the job marked FAILED with the error id.
	require.Len(t, f.errorLog.inserted, 1)
	assert.Equal(t, constants.CategoryOCR, f.errorLog.inserted[0].Category)
	assert.Equal(t, constants.SeverityHigh, f.errorLog.inserted[0].Severity)
	assert.Contains(t, f.jobs.updates, constants.JobStatusFailed)
	require.Len(t, f.jobs.updateMsgs, 1)
	assert.Contains(t, f.jobs.updateMsgs[0], stageErr.ErrorID.String())
}

func TestProcessChecksumMismatchFailsRetrieve(t *testing.T) {
	f := newFixture(t)
	bogus := "0000000000000000000000000000000000000000000000000000000000000000"
	f.job.Upload.Checksum = &bogus

	_, err := f.processor.Process(context.Background(), f.job)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, constants.StageRetrieve, stageErr.Stage)
	assert.Zero(t, f.extractor.calls)
}

func TestProcessTenantViolationIsCritical(t *testing.T) {
	f := newFixture(t)
	f.store.failure = fmt.Errorf("fetch refused: %w", common.ErrTenantIsolation)

	_, err := f.processor.Process(context.Background(), f.job)

	require.Error(t, err)
	require.Len(t, f.errorLog.inserted, 1)
	assert.Equal(t, constants.SeverityCritical, f.errorLog.inserted[0].Severity)
	// CRITICAL escalates straight to a review flag.
	require.NotEmpty(t, f.reviews.flags)
}

func TestProcessMatchFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.matcher.failure = errors.New("catalog service timeout")

	result, err := f.processor.Process(context.Background(), f.job)

	require.NoError(t, err, "a matching fault must not abort the pipeline")
	assert.True(t, result.Success)
	require.Len(t, result.ErrorIDs, 1, "the degradation is still logged")
	require.Len(t, f.receipts.stored, 1)

	// Items persisted unmatched.
	for _, item := range f.receipts.stored[0].LineItems {
		assert.Nil(t, item.MatchedProductID)
	}

	require.Len(t, f.errorLog.inserted, 1)
	assert.Equal(t, constants.CategoryMatching, f.errorLog.inserted[0].Category)
	assert.Equal(t, constants.SeverityMedium, f.errorLog.inserted[0].Severity)

	// Logging the degradation must not move the job off its happy path.
	assert.NotContains(t, f.jobs.updates, constants.JobStatusFailed)
	assert.Equal(t, []constants.JobStatus{constants.JobStatusCompleted}, f.jobs.terminal)
}

func TestProcessMatchResultsAppliedToItems(t *testing.T) {
	f := newFixture(t)
	productID := uuid.New()
	f.matcher.results = []matching.MatchResult{
		{
			ItemIndex: 0,
			Matches: []matching.ProductMatch{
				{ProductID: productID, ProductName: "Coffee Beans 500g", Similarity: 0.97, Confidence: 0.95, MatchType: "exact"},
			},
			BestMatch: &matching.ProductMatch{ProductID: productID, ProductName: "Coffee Beans 500g", Similarity: 0.97, Confidence: 0.95, MatchType: "exact"},
		},
	}

	result, err := f.processor.Process(context.Background(), f.job)

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, f.receipts.stored, 1)
	item := f.receipts.stored[0].LineItems[0]
	require.NotNil(t, item.MatchedProductID)
	assert.Equal(t, productID, *item.MatchedProductID)
	require.NotNil(t, item.MatchConfidence)
	assert.InDelta(t, 0.95, *item.MatchConfidence, 1e-9)

	// A single confident match produces no candidate rows.
	assert.Empty(t, f.candidates.stored)
}

func TestProcessAmbiguousMatchStoresCandidates(t *testing.T) {
	f := newFixture(t)
	first := matching.ProductMatch{ProductID: uuid.New(), ProductName: "Coffee Beans 500g", Confidence: 0.65, MatchType: "fuzzy"}
	second := matching.ProductMatch{ProductID: uuid.New(), ProductName: "Coffee Beans 1kg", Confidence: 0.60, MatchType: "fuzzy"}
	f.matcher.results = []matching.MatchResult{
		{ItemIndex: 0, Matches: []matching.ProductMatch{first, second}, BestMatch: &first, NeedsReview: true},
	}

	result, err := f.processor.Process(context.Background(), f.job)

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, f.candidates.stored, 1)
	require.Len(t, f.candidates.stored[0], 1)
	assert.Len(t, f.candidates.stored[0][0].Matches, 2)
	assert.True(t, f.receipts.stored[0].LineItems[0].NeedsReview)
}

func TestProcessPersistFailure(t *testing.T) {
	f := newFixture(t)
	f.receipts.failure = errors.New("insert failed: connection reset")

	result, err := f.processor.Process(context.Background(), f.job)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, constants.StagePersist, stageErr.Stage)
	assert.False(t, result.Success)
	assert.Nil(t, result.ReceiptID)
	require.Len(t, f.errorLog.inserted, 1)
	assert.Equal(t, constants.CategoryStorage, f.errorLog.inserted[0].Category)
}

func TestProcessLowConfidenceFlagsReview(t *testing.T) {
	f := newFixture(t)
	data := parsedReceipt()
	data.Confidence.Overall = 0.5
	f.parser.data = data

	result, err := f.processor.Process(context.Background(), f.job)

	require.NoError(t, err)
	assert.True(t, result.Success, "low confidence completes, it does not fail")
	assert.True(t, result.RequiresManualReview)

	assert.Contains(t, f.jobs.terminal, constants.JobStatusCompleted)
	assert.Contains(t, f.jobs.updates, constants.JobStatusRequiresReview)
	require.Len(t, f.reviews.flags, 1)
	assert.Equal(t, constants.ReviewLowConfidence, f.reviews.flags[0].Reason)
}

func TestProcessUserRequestedReview(t *testing.T) {
	f := newFixture(t)
	f.job.Options.RequireManualReview = true

	result, err := f.processor.Process(context.Background(), f.job)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.RequiresManualReview)
	require.Len(t, f.reviews.flags, 1)
	assert.Equal(t, constants.ReviewUserRequested, f.reviews.flags[0].Reason)
}

func TestProcessTotalMismatchFlagsAmountReason(t *testing.T) {
	f := newFixture(t)
	data := parsedReceipt()
	declared := int64(1000)
	itemTotal := int64(700)
	data.Total = &declared
	data.LineItems[0].TotalPrice = &itemTotal
	f.parser.data = data

	result, err := f.processor.Process(context.Background(), f.job)

	require.NoError(t, err)
	assert.True(t, result.RequiresManualReview)
	require.Len(t, f.reviews.flags, 1)
	assert.Equal(t, constants.ReviewAmountMismatch, f.reviews.flags[0].Reason)
}
