// Package retry calls a function again while it fails with a retryable error.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrRetry marks an error worth another try.
var ErrRetry = errors.New("retry")

// Backoff blocks until the next try. It returns ctx.Err() when ctx is done first.
type Backoff func(context.Context) error

// StaticBackoff waits interval each time.
func StaticBackoff(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1)
}

// ExponentialBackoff waits initial at first, and r times longer than the last wait after that.
func ExponentialBackoff(initial time.Duration, r float64) Backoff {
	interval := initial
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			interval = time.Duration(float64(interval) * r)
			return nil
		}
	}
}

// Blocking calls f until it succeeds, it fails with an error not wrapping ErrRetry,
// or it has been called attempts times. attempts <= 0 means no limit.
//
// The first call is made without waiting. The last error of f is returned.
func Blocking[T any](ctx context.Context, attempts int, b Backoff, f func() (T, error)) (T, error) {
	for n := 1; ; n++ {
		v, err := f()
		if err == nil || !errors.Is(err, ErrRetry) {
			return v, err
		}
		if 0 < attempts && attempts <= n {
			return v, err
		}
		if berr := b(ctx); berr != nil {
			return v, errors.Join(err, berr)
		}
	}
}
