package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// defaultTrialQuota is how many trial calls a half-open breaker admits.
const defaultTrialQuota = 3

// CircuitBreaker guards an upstream dependency. Consecutive failures trip
// it open; after the cooldown it admits a few trial calls, and enough
// successes close it again.
type CircuitBreaker struct {
	name        string
	maxFailures uint32
	cooldown    time.Duration
	trialQuota  uint32
	logger      *logrus.Logger

	mu          sync.Mutex
	state       State
	failures    uint32
	successes   uint32
	requests    uint32
	trialsUsed  uint32
	openedUntil time.Time
	lastFailure time.Time
}

func New(name string, maxFailures uint32, cooldown time.Duration) *CircuitBreaker {
	return NewWithLogger(name, maxFailures, cooldown, logrus.New())
}

func NewWithLogger(name string, maxFailures uint32, cooldown time.Duration, logger *logrus.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		trialQuota:  defaultTrialQuota,
		logger:      logger,
	}
}

// Execute runs fn when the breaker admits the call. A rejected call fails
// fast with a CircuitBreakerError and never reaches fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.admit() {
		return &CircuitBreakerError{Name: cb.name, State: cb.GetState()}
	}

	err := fn(ctx)
	cb.record(err == nil)
	return err
}

// admit decides whether a call may proceed, moving an expired open
// breaker into half-open on the way.
func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.refreshLocked()
	switch cb.state {
	case StateClosed:
		cb.requests++
		return true
	case StateHalfOpen:
		if cb.trialsUsed >= cb.trialQuota {
			return false
		}
		cb.trialsUsed++
		cb.requests++
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if success {
		cb.successes++
		if cb.state == StateHalfOpen && cb.successes >= cb.trialQuota {
			cb.closeLocked()
		}
		return
	}

	cb.failures++
	cb.lastFailure = time.Now()
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.maxFailures {
			cb.tripLocked()
		}
	case StateHalfOpen:
		cb.tripLocked()
	}
}

// refreshLocked promotes an open breaker whose cooldown has elapsed.
func (cb *CircuitBreaker) refreshLocked() {
	if cb.state == StateOpen && !time.Now().Before(cb.openedUntil) {
		cb.state = StateHalfOpen
		cb.trialsUsed = 0
		cb.successes = 0
		cb.logger.WithField("circuit_breaker", cb.name).Info("Circuit breaker half-open, trialing upstream")
	}
}

func (cb *CircuitBreaker) tripLocked() {
	cb.state = StateOpen
	cb.openedUntil = time.Now().Add(cb.cooldown)
	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"failures":        cb.failures,
	}).Warn("Circuit breaker opened")
}

func (cb *CircuitBreaker) closeLocked() {
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.trialsUsed = 0
	cb.logger.WithField("circuit_breaker", cb.name).Info("Circuit breaker closed after recovery")
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refreshLocked()
	return cb.state
}

// Stats is a point-in-time snapshot for diagnostics.
type Stats struct {
	Name            string
	State           State
	Failures        uint32
	Requests        uint32
	Successes       uint32
	LastFailureTime time.Time
}

func (cb *CircuitBreaker) GetStats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{
		Name:            cb.name,
		State:           cb.state,
		Failures:        cb.failures,
		Requests:        cb.requests,
		Successes:       cb.successes,
		LastFailureTime: cb.lastFailure,
	}
}

// CircuitBreakerError reports a call rejected by an open breaker.
type CircuitBreakerError struct {
	Name  string
	State State
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is %s", e.Name, e.State)
}

// IsCircuitBreakerError reports whether err (or anything it wraps) is a
// breaker rejection.
func IsCircuitBreakerError(err error) bool {
	var cbErr *CircuitBreakerError
	return errors.As(err, &cbErr)
}
