package filewatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

var ErrWatch = errors.New("cannot watch file")

// Watch calls fn each time the file at path is modified
// (= written, created, removed, renamed or changed its mode), until ctx is done.
//
// It watches the directory containing the file rather than the file itself,
// so a file replaced by rename (as atomic saves do) keeps being watched.
//
// # Args
//
// - ctx: context.Context. Watch returns when it is done.
//
// - path: file path to be watched.
//
// - fn: called with each event of the file. When it returns an error, Watch stops and returns it.
//
// # Returns
//
// - error: cause of the stop. It is nil when ctx is done.
func Watch(ctx context.Context, path string, fn func(fsnotify.Event) error) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWatch, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWatch, err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWatch, path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("%w: %s: %w", ErrWatch, path, err)
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if err := fn(event); err != nil {
				return err
			}
		}
	}
}

// UntilModifyContext returns a context that is canceled
// when the file at path is modified.
//
// If error is not nil, both of the context and the cancel function are nil.
func UntilModifyContext(ctx context.Context, path string) (context.Context, func(), error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, err
	}
	cctx, cancel := context.WithCancelCause(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		cancel(err)
		return nil, nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		cancel(err)
		return nil, nil, err
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				cancel(fmt.Errorf("%s is updated (%s)", event.Name, event.Op.String()))
			}
		}
	}()

	return cctx, func() { cancel(nil) }, nil
}
