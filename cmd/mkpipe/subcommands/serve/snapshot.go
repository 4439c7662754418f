package serve

import (
	"context"
	"log"
	"sync"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/utils/filewatch"
)

// Snapshot holds the env with the latest config.
type Snapshot struct {
	mu  sync.RWMutex
	env common.Env
}

func NewSnapshot(e common.Env) *Snapshot {
	return &Snapshot{env: e}
}

func (s *Snapshot) Env() common.Env {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.env
}

// Reload reads the config file again.
func (s *Snapshot) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := pconfig.Load(s.env.ConfigPath)
	if err != nil {
		return err
	}
	s.env.Config = cfg
	return nil
}

// Follow reloads the config each time the file is modified, until ctx is done.
func (s *Snapshot) Follow(ctx context.Context, logger *log.Logger) error {
	path := s.Env().ConfigPath
	mctx, cancel, err := filewatch.UntilModifyContext(ctx, path)
	if err != nil {
		return err
	}
	for {
		<-mctx.Done()
		cause := context.Cause(mctx)
		cancel()
		if ctx.Err() != nil {
			return nil
		}

		// watch again before reading, not to miss changes while reading.
		if mctx, cancel, err = filewatch.UntilModifyContext(ctx, path); err != nil {
			return err
		}
		if err := s.Reload(); err != nil {
			logger.Printf("cannot reload config: %v", err)
			continue
		}
		logger.Printf("config is reloaded: %v", cause)
	}
}
