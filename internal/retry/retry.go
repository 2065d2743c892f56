// Package retry provides a reusable retry policy for fallible operations
// whose failures carry an HTTP status code.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Errors returned when a policy gives up.
var (
	// ErrExhausted wraps the last failure once the attempt budget is spent.
	ErrExhausted = errors.New("retry attempts exhausted")

	// ErrNonRetryableStatus wraps a failure whose status code is excluded
	// from retrying.
	ErrNonRetryableStatus = errors.New("non-retryable status")
)

// StatusError is implemented by errors that carry an HTTP status code.
// *api.APIError satisfies it.
type StatusError interface {
	error
	Status() int
}

// Policy decides whether and when a failed operation is retried.
type Policy struct {
	MaxAttempts      int           // Default: 3
	BaseDelay        time.Duration // Default: 1s
	ExcludedStatuses []int         // Status codes that are never retried

	Logger *slog.Logger

	// sleep is the delay primitive, replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns a policy with the standard attempt budget.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
	}
}

// Do runs op until it succeeds, a non-retryable failure occurs, or the
// attempt budget is exhausted. The wait before attempt n+1 is n × BaseDelay.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	baseDelay := p.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			wait := time.Duration(attempt-1) * baseDelay
			logger.Debug("retrying operation", "attempt", attempt, "wait", wait)
			if err := sleep(ctx, wait); err != nil {
				return err
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if status, ok := statusOf(err); ok && p.isExcluded(status) {
			return fmt.Errorf("%w: %w", ErrNonRetryableStatus, err)
		}
	}

	return fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}

func (p Policy) isExcluded(status int) bool {
	for _, s := range p.ExcludedStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// statusOf extracts the HTTP status code from an error chain.
func statusOf(err error) (int, bool) {
	var se StatusError
	if errors.As(err, &se) {
		return se.Status(), true
	}
	return 0, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
