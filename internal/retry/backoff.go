package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffConfig tunes the exponential backoff schedule.
type BackoffConfig struct {
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
	MaxAttempts  int           `json:"max_attempts"`
	Jitter       bool          `json:"jitter"`
}

// DefaultBackoffConfig returns the schedule used when no override is configured.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       true,
	}
}

// Backoff retries an operation on an exponential schedule with optional jitter.
type Backoff struct {
	config BackoffConfig
}

func NewBackoff(config BackoffConfig) *Backoff {
	return &Backoff{config: config}
}

// Retry runs the operation until it succeeds, the attempts are exhausted,
// or the context is cancelled. Every error is treated as retryable.
func (b *Backoff) Retry(ctx context.Context, operation func() error) error {
	return b.RetryWithPredicate(ctx, operation, func(error) bool { return true })
}

// RetryWithPredicate is Retry with a filter: a non-retryable error aborts
// the loop immediately and is returned as-is.
func (b *Backoff) RetryWithPredicate(ctx context.Context, operation func() error, isRetryable func(error) bool) error {
	var lastErr error
	for attempt := 1; attempt <= b.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == b.config.MaxAttempts {
			break
		}

		timer := time.NewTimer(b.DelayFor(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

// DelayFor returns the pause scheduled after the given attempt (1-based).
func (b *Backoff) DelayFor(attempt int) time.Duration {
	delay := float64(b.config.InitialDelay) * math.Pow(b.config.Multiplier, float64(attempt-1))
	if delay > float64(b.config.MaxDelay) {
		delay = float64(b.config.MaxDelay)
	}

	if b.config.Jitter {
		// Spread the delay over +-25% so concurrent retriers fan out.
		delay *= 0.75 + rand.Float64()*0.5
		if delay > float64(b.config.MaxDelay) {
			delay = float64(b.config.MaxDelay)
		}
		if delay < 0 {
			delay = float64(b.config.InitialDelay)
		}
	}

	return time.Duration(delay)
}
