package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diegolsarmond/qchat/internal/constants"
)

// transientDBErrors are worth retrying; SQLite reports a concurrent
// writer as "database is locked".
var transientDBErrors = []string{
	"database is locked",
	"disk I/O error",
	"connection refused",
	"no such host",
}

// retryableDBOperationNoReturn retries a write against transient SQLite
// failures with a linearly growing backoff.
func retryableDBOperationNoReturn(ctx context.Context, operation func() error, operationName string) error {
	maxAttempts := constants.DefaultDatabaseRetryAttempts
	step := time.Duration(constants.DefaultRetryBackoffMs) * time.Millisecond
	maxBackoff := time.Duration(constants.DefaultMaxBackoffMs) * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if !isRetryableDBError(lastErr) {
			return fmt.Errorf("%s failed (non-retryable): %w", operationName, lastErr)
		}
		if attempt == maxAttempts {
			break
		}

		backoff := min(time.Duration(attempt)*step, maxBackoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxAttempts, lastErr)
}

func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := err.Error()
	for _, transient := range transientDBErrors {
		if strings.Contains(msg, transient) {
			return true
		}
	}
	// Constraint violations, schema mismatches and everything else fail
	// the same way on a retry.
	return false
}
