package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quickBackoff(attempts int) *Backoff {
	return NewBackoff(BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  attempts,
		Jitter:       false,
	})
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := quickBackoff(5).Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("provider unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryReturnsLastErrorWhenExhausted(t *testing.T) {
	lastErr := errors.New("still down")
	calls := 0
	err := quickBackoff(3).Retry(context.Background(), func() error {
		calls++
		return lastErr
	})
	require.ErrorIs(t, err, lastErr)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnContextCancellation(t *testing.T) {
	backoff := NewBackoff(BackoffConfig{
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  10,
		Jitter:       false,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	calls := 0
	err := backoff.Retry(ctx, func() error {
		calls++
		return errors.New("keep trying")
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, calls, 1)
}

func TestRetryWithPredicateAbortsOnPermanentError(t *testing.T) {
	permanent := errors.New("invalid token")
	calls := 0
	err := quickBackoff(5).RetryWithPredicate(context.Background(), func() error {
		calls++
		return permanent
	}, func(err error) bool {
		return !errors.Is(err, permanent)
	})
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
}

func TestDelayForGrowsAndCaps(t *testing.T) {
	backoff := NewBackoff(BackoffConfig{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  8,
		Jitter:       false,
	})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 10 * time.Millisecond},
		{2, 20 * time.Millisecond},
		{3, 40 * time.Millisecond},
		{4, 50 * time.Millisecond},
		{7, 50 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff.DelayFor(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestDelayForJitterStaysInBand(t *testing.T) {
	backoff := NewBackoff(BackoffConfig{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       true,
	})

	base := 20 * time.Millisecond
	varied := false
	var first time.Duration
	for i := 0; i < 50; i++ {
		d := backoff.DelayFor(2)
		assert.GreaterOrEqual(t, d, time.Duration(float64(base)*0.75))
		assert.LessOrEqual(t, d, time.Duration(float64(base)*1.25))
		if i == 0 {
			first = d
		} else if d != first {
			varied = true
		}
	}
	assert.True(t, varied, "jitter should not produce a constant delay")
}

func TestDefaultBackoffConfig(t *testing.T) {
	cfg := DefaultBackoffConfig()
	assert.Equal(t, 100*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.True(t, cfg.Jitter)
}
