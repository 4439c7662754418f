package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/meerkat-pipeline/mkpipe/pkg/loop"
)

// StaleLockAge is the age after which a left-over lock file is taken as abandoned.
const StaleLockAge = 5 * time.Minute

var ErrLocked = errors.New("config is locked by another process")

// Lock is an advisory lock on a config file. It is a file at <config path>.lock .
type Lock struct {
	path string
}

func lockPath(config string) string {
	return config + ".lock"
}

// TryLock takes the lock of the config at path, or returns ErrLocked.
//
// A lock older than StaleLockAge is taken as abandoned and replaced.
func TryLock(path string) (*Lock, error) {
	lp := lockPath(path)
	l, err := createLock(lp)
	if !errors.Is(err, os.ErrExist) {
		return l, err
	}
	if !isStale(lp) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lp)
	}
	return takeOver(lp)
}

func createLock(lp string) (*Lock, error) {
	f, err := os.OpenFile(lp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	host, _ := os.Hostname()
	fmt.Fprintf(f, "%s %d\n", host, os.Getpid())
	return &Lock{path: lp}, nil
}

func isStale(p string) bool {
	s, err := os.Stat(p)
	return err == nil && StaleLockAge <= time.Since(s.ModTime())
}

// takeOver replaces the abandoned lock at lp with a new one.
//
// Waiters finding the abandoned lock at once are serialized by a guard file,
// and the lock is checked again under the guard. So a lock taken over by a waiter
// is never removed by another one.
func takeOver(lp string) (*Lock, error) {
	guardPath := lp + ".takeover"
	if isStale(guardPath) {
		// left by a process killed while taking over.
		if err := os.Remove(guardPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	guard, err := createLock(guardPath)
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: %s is being taken over", ErrLocked, lp)
	}
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	if isStale(lp) {
		if err := os.Remove(lp); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	l, err := createLock(lp)
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lp)
	}
	return l, err
}

// AcquireLock waits for the lock of the config at path.
func AcquireLock(ctx context.Context, path string) (*Lock, error) {
	backoff := &loop.Backoff{Initial: 50 * time.Millisecond, Max: 2 * time.Second}
	return loop.Start(
		ctx, (*Lock)(nil),
		func(ctx context.Context, _ *Lock) (*Lock, loop.Next) {
			l, err := TryLock(path)
			if errors.Is(err, ErrLocked) {
				return nil, loop.Continue(backoff.Next())
			}
			if err != nil {
				return nil, loop.Break(err)
			}
			return l, loop.Break(nil)
		},
	)
}

func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Update loads the config at path, passes it to fn and saves it, under the lock.
//
// Nothing is saved when fn returns an error.
func Update(ctx context.Context, path string, fn func(*Config) error) error {
	l, err := AcquireLock(ctx, path)
	if err != nil {
		return err
	}
	defer l.Release()

	c, err := Load(path)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	return c.Save(path)
}
