package registry

import (
	"context"
	"errors"
	"time"

	"github.com/matzehuels/deptree/pkg/deps"
)

// RetryableError wraps an error to indicate it should trigger a retry.
// The client wraps transient failures (transport errors, 5xx, 429) with this
// type so that [Retry] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is marked as transient.
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// Retry executes fn up to attempts times with exponential backoff.
// It only retries errors wrapped with [RetryableError]; other errors are
// returned immediately. The delay doubles after each failed attempt.
// Returns the last error if all attempts fail, or ctx.Err() if cancelled.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

// WithRetry decorates f so that transient failures are retried up to
// retries additional times, starting at delay and doubling. With
// retries <= 0, f is returned unchanged.
func WithRetry(f deps.Fetcher, retries int, delay time.Duration) deps.Fetcher {
	if retries <= 0 {
		return f
	}
	return &retryFetcher{next: f, attempts: retries + 1, delay: delay}
}

type retryFetcher struct {
	next     deps.Fetcher
	attempts int
	delay    time.Duration
}

func (r *retryFetcher) FetchManifest(ctx context.Context, ref deps.PackageRef) (deps.Manifest, error) {
	var m deps.Manifest
	err := Retry(ctx, r.attempts, r.delay, func() error {
		var err error
		m, err = r.next.FetchManifest(ctx, ref)
		return err
	})
	return m, err
}
