// Package loop runs a task repeatedly until it decides to stop.
//
// It is used for polling: waiting for a lock file to be released,
// or waiting for batch jobs to finish.
package loop

import (
	"context"
	"fmt"
	"time"
)

// Next tells Start what to do after a task returns.
type Next struct {
	err      error
	quit     bool
	interval time.Duration
}

func (n Next) String() string {
	if n.err != nil {
		return fmt.Sprintf("[break] with error: %v", n.err)
	}
	if n.quit {
		return "[break] without error"
	}
	return fmt.Sprintf("[continue] interval: %s", n.interval)
}

// Continue runs the task again after interval.
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// Break stops the loop. Start returns err as it is (can be nil).
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task receives the value returned last time (or the initial value),
// and returns a new value with a decision.
type Task[T any] func(context.Context, T) (T, Next)

// Start calls task until it returns Break or ctx is done.
//
// The zero Next is Continue(0).
//
// # Returns
//
// - T: the last value returned by the task. When ctx is done before the first call, init.
//
// - error: the error passed to Break, or ctx.Err() when the loop is stopped by ctx.
func Start[T any](ctx context.Context, init T, task Task[T], options ...Option) (T, error) {
	if err := ctx.Err(); err != nil {
		return init, err
	}

	value := init
	for {
		v, next := runOnce(ctx, value, task, options)
		value = v
		if next.err != nil {
			return value, next.err
		}
		if next.quit {
			return value, nil
		}

		timer := time.NewTimer(next.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return value, ctx.Err()
		case <-timer.C:
		}
	}
}

func runOnce[T any](ctx context.Context, value T, task Task[T], options []Option) (T, Next) {
	c := &config{ctx: ctx}
	for _, opt := range options {
		c = opt(c)
	}
	for _, cancel := range c.cancels {
		defer cancel()
	}
	return task(c.ctx, value)
}

type config struct {
	ctx     context.Context
	cancels []func()
}

type Option func(*config) *config

// WithTimeout sets a deadline on the context passed to each task call.
func WithTimeout(d time.Duration) Option {
	return func(c *config) *config {
		ctx, cancel := context.WithTimeout(c.ctx, d)
		return &config{ctx: ctx, cancels: append(c.cancels, cancel)}
	}
}

// Backoff yields growing intervals: initial, initial*2, ... up to max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	current time.Duration
}

// Next returns the interval to wait now, and grows the following one.
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.Initial
	}
	d := b.current
	b.current *= 2
	if b.Max < b.current {
		b.current = b.Max
	}
	if b.Max < d {
		d = b.Max
	}
	return d
}
