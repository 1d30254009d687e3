package providers

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls RetryWithBackoff's exponential-backoff-with-jitter
// schedule. Adapted from the platform SDK's generic retry helper.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   func(error) bool
}

// DefaultRetryConfig is a sane default: 3 attempts, 200ms base, 5s cap.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second, Retryable: func(error) bool { return true }}
}

// RetryWithBackoff runs fn up to cfg.MaxAttempts times, sleeping an
// exponentially growing, jittered delay between attempts, stopping early if
// cfg.Retryable(err) is false or the context is cancelled.
func RetryWithBackoff[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(cfg.BaseDelay, cfg.MaxDelay, attempt)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return zero, err
		}
	}
	return zero, lastErr
}

func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if d > max {
		d = max
	}
	jitter := time.Duration(rand.Int63n(int64(d)/2 + 1))
	return d/2 + jitter
}
