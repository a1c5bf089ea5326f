package recognition

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"time"
)

// RetryPolicy bounds retries of the recognition call itself, independent of
// the orchestrator's job-level retry loop.
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// NewRetryPolicy returns the default recognition retry policy.
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       2,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// CalculateBackoff returns the delay before the given (zero-based) attempt,
// with ±25% jitter.
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoff += jitter
	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}
	return time.Duration(backoff)
}

// retryingExtractor wraps a TextExtractor with the policy.
type retryingExtractor struct {
	inner  TextExtractor
	policy *RetryPolicy
	logger *slog.Logger
}

// WithRetry wraps an extractor so transient faults are retried per policy.
func WithRetry(inner TextExtractor, policy *RetryPolicy, logger *slog.Logger) TextExtractor {
	if policy == nil {
		policy = NewRetryPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retryingExtractor{inner: inner, policy: policy, logger: logger}
}

func (r *retryingExtractor) ExtractText(ctx context.Context, image []byte, opts Options) (Result, error) {
	var lastErr error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		res, err := r.inner.ExtractText(ctx, image, opts)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == r.policy.MaxAttempts-1 {
			break
		}

		backoff := r.policy.CalculateBackoff(attempt)
		r.logger.Warn("recognition.retrying",
			"attempt", attempt+1,
			"backoff_ms", backoff.Milliseconds(),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return Result{}, lastErr
}

// isRetryable treats timeouts and connection faults as transient.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
