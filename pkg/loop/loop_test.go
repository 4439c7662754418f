package loop_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meerkat-pipeline/mkpipe/pkg/loop"
)

func TestStart(t *testing.T) {
	t.Run("it repeats the task until it breaks", func(t *testing.T) {
		actual, err := loop.Start(
			context.Background(), 0,
			func(_ context.Context, v int) (int, loop.Next) {
				v += 1
				if 10 <= v {
					return v, loop.Break(nil)
				}
				return v, loop.Continue(0)
			},
		)
		if err != nil {
			t.Fatal(err)
		}
		if actual != 10 {
			t.Errorf("unexpected value: %d", actual)
		}
	})

	t.Run("it returns the error passed to Break with the last value", func(t *testing.T) {
		expectedErr := errors.New("fake error")
		actual, err := loop.Start(
			context.Background(), "init",
			func(_ context.Context, v string) (string, loop.Next) {
				return "broken", loop.Break(expectedErr)
			},
		)
		if !errors.Is(err, expectedErr) {
			t.Errorf("unexpected error: %v", err)
		}
		if actual != "broken" {
			t.Errorf("unexpected value: %s", actual)
		}
	})

	t.Run("it stops when context is done", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		actual, err := loop.Start(
			ctx, 0,
			func(_ context.Context, v int) (int, loop.Next) {
				return v + 1, loop.Continue(10 * time.Millisecond)
			},
		)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("unexpected error: %v", err)
		}
		if actual < 1 {
			t.Errorf("task should be called at least once: %d", actual)
		}
	})

	t.Run("it does not call the task when the context is done already", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		actual, err := loop.Start(
			ctx, 42,
			func(_ context.Context, v int) (int, loop.Next) {
				called = true
				return v, loop.Break(nil)
			},
		)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
		if called || actual != 42 {
			t.Errorf("task should not be called: called=%v, value=%d", called, actual)
		}
	})

	t.Run("it passes a deadlined context with WithTimeout", func(t *testing.T) {
		_, err := loop.Start(
			context.Background(), 0,
			func(ctx context.Context, v int) (int, loop.Next) {
				if _, ok := ctx.Deadline(); !ok {
					t.Error("context has no deadline")
				}
				return v, loop.Break(nil)
			},
			loop.WithTimeout(time.Second),
		)
		if err != nil {
			t.Fatal(err)
		}
	})
}

func TestBackoff(t *testing.T) {
	b := &loop.Backoff{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond}

	expected := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		50 * time.Millisecond,
		50 * time.Millisecond,
	}
	for i, e := range expected {
		if a := b.Next(); a != e {
			t.Errorf("#%d: (actual, expected) = (%s, %s)", i, a, e)
		}
	}
}
