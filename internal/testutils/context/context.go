package context

import (
	"context"
	"testing"
	"time"
)

// WithTest wraps ctx with the deadline of the test.
//
// The deadline is 1 second before the test's one, to leave time to clean up resources.
func WithTest(ctx context.Context, t *testing.T) (context.Context, func()) {
	if deadline, ok := t.Deadline(); ok {
		return context.WithDeadline(ctx, deadline.Add(-time.Second))
	}
	return context.WithCancel(ctx)
}
