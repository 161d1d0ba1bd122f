package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(maxFailures uint32, cooldown time.Duration) *CircuitBreaker {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewWithLogger("provider", maxFailures, cooldown, logger)
}

func failingCall(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func okCall(context.Context) error { return nil }

func TestClosedBreakerPassesCallsThrough(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	for i := 0; i < 5; i++ {
		require.NoError(t, cb.Execute(context.Background(), okCall))
	}
	assert.Equal(t, StateClosed, cb.GetState())

	stats := cb.GetStats()
	assert.Equal(t, uint32(5), stats.Requests)
	assert.Equal(t, uint32(5), stats.Successes)
	assert.Zero(t, stats.Failures)
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)
	upstreamDown := errors.New("find chats: connection refused")

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), failingCall(upstreamDown))
		require.ErrorIs(t, err, upstreamDown)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	// The next call fails fast without reaching the provider.
	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsCircuitBreakerError(err))
	assert.False(t, called)
	assert.Contains(t, err.Error(), "provider")
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := newTestBreaker(2, 10*time.Millisecond)

	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), failingCall(errors.New("timeout")))
	}
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(15 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.GetState())

	// Enough trial successes close the breaker again.
	for i := 0; i < int(defaultTrialQuota); i++ {
		require.NoError(t, cb.Execute(context.Background(), okCall))
	}
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Zero(t, cb.GetStats().Failures)
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)

	_ = cb.Execute(context.Background(), failingCall(errors.New("http 503")))
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(15 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.GetState())

	err := cb.Execute(context.Background(), failingCall(errors.New("still down")))
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.GetState())

	// Fresh cooldown: calls are rejected again right away.
	err = cb.Execute(context.Background(), okCall)
	assert.True(t, IsCircuitBreakerError(err))
}

func TestHalfOpenLimitsTrialCalls(t *testing.T) {
	cb := newTestBreaker(1, 5*time.Millisecond)

	_ = cb.Execute(context.Background(), failingCall(errors.New("down")))
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.GetState())

	// Slow trial calls that neither succeed nor fail yet would exhaust the
	// quota; additional calls must be rejected, not queued.
	admitted := 0
	for i := 0; i < 10; i++ {
		if cb.admit() {
			admitted++
		}
	}
	assert.Equal(t, int(defaultTrialQuota), admitted)
}

func TestIsCircuitBreakerErrorUnwraps(t *testing.T) {
	base := &CircuitBreakerError{Name: "provider", State: StateOpen}
	assert.True(t, IsCircuitBreakerError(base))
	assert.True(t, IsCircuitBreakerError(fmt.Errorf("sync chats: %w", base)))
	assert.False(t, IsCircuitBreakerError(errors.New("circuit breaker 'provider' is OPEN")))
	assert.False(t, IsCircuitBreakerError(nil))
}

func TestConcurrentExecutes(t *testing.T) {
	cb := newTestBreaker(1000, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = cb.Execute(context.Background(), okCall)
			}
		}()
	}
	wg.Wait()

	stats := cb.GetStats()
	assert.Equal(t, uint32(800), stats.Requests)
	assert.Equal(t, uint32(800), stats.Successes)
	assert.Equal(t, StateClosed, cb.GetState())
}
