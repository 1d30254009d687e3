package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoffSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Retryable: func(error) bool { return true }}

	v, err := RetryWithBackoff(context.Background(), cfg, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.Equal(t, 3, attempts)
}

func TestRetryWithBackoffStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	sentinel := errors.New("fatal")
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Retryable: func(err error) bool { return err != sentinel }}

	_, err := RetryWithBackoff(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		return 0, sentinel
	})

	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, attempts)
}

func TestRetryWithBackoffExhaustsMaxAttempts(t *testing.T) {
	attempts := 0
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = 2
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond

	_, err := RetryWithBackoff(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		return 0, errors.New("always fails")
	})

	require.Error(t, err)
	require.Equal(t, 2, attempts)
}
