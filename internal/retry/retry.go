// Package retry wraps provider calls with bounded exponential backoff.
// Callers supply a classifier that decides whether an error is transient;
// permanent errors are surfaced immediately without further attempts.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Classifier reports whether an error is transient and worth retrying.
type Classifier func(error) bool

const (
	// maxAttempts bounds the retry loop. Provider throttling recovers fast
	// or not at all, so the ceiling is deliberately small.
	maxAttempts     = 3
	initialInterval = 200 * time.Millisecond
	maxInterval     = 2 * time.Second
)

// Do invokes fn, retrying on errors the classifier reports as transient.
// At most maxAttempts invocations are made; the last error is returned
// unwrapped so callers can inspect it with errors.As.
func Do(ctx context.Context, fn func() error, transient Classifier) error {
	_, err := DoValue(ctx, func() (struct{}, error) {
		return struct{}{}, fn()
	}, transient)
	return err
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, fn func() (T, error), transient Classifier) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.MaxInterval = maxInterval

	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && !transient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxAttempts))
}

// Never is a classifier that treats every error as permanent.
func Never(error) bool { return false }
