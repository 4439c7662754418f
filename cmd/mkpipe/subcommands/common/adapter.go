package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/logger"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/configs/site"
	"github.com/meerkat-pipeline/mkpipe/pkg/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/slurm"
	"github.com/youta-t/flarc"
)

// Slurm is what commands ask to the batch scheduler. *slurm.Client is a Slurm.
type Slurm interface {
	pipeline.Submitter
	Accounting(ctx context.Context, ids ...slurm.JobID) ([]slurm.JobInfo, error)
}

// Env is what a command works on.
type Env struct {
	// absolute path to the pipeline config file
	ConfigPath string

	// the config as loaded when the command started
	Config *pconfig.Config

	// site profile. Nil when no profile is chosen.
	Profile *site.Profile

	Slurm Slurm
}

// Dir is the directory of the config file.
func (e Env) Dir() string {
	return filepath.Dir(e.ConfigPath)
}

// Options are options to plan the pipeline with the env.
func (e Env) Options() pipeline.Options {
	return pipeline.Options{ConfigPath: e.ConfigPath, Profile: e.Profile}
}

type TaskWithCommonFlag[T any] func(
	ctx context.Context,
	logger *log.Logger,
	commonFlag CommonFlags,
	cl flarc.Commandline[T],
	params []any,
) error

func NewTaskWithCommonFlag[T any](task TaskWithCommonFlag[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], pos []any) error {
		var commonFlag CommonFlags
		found := false
		newpos := make([]any, 0, len(pos))
		for _, p := range pos {
			switch v := p.(type) {
			case CommonFlags:
				found = true
				commonFlag = v
			default:
				newpos = append(newpos, p)
			}
		}
		if !found {
			return errors.New("programming error: common flags not found")
		}

		return task(ctx, logger.New(cl.Stderr(), cl.Fullname()), commonFlag, cl, newpos)
	}
}

type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	env Env,
	cl flarc.Commandline[T],
	params []any,
) error

func NewTask[T any](task Task[T]) flarc.Task[T] {
	return NewTaskWithCommonFlag(func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag CommonFlags,
		cl flarc.Commandline[T],
		params []any,
	) error {
		env, err := LoadEnv(commonFlag)
		if err != nil {
			return err
		}
		return task(ctx, logger, env, cl, params)
	})
}

// LoadEnv loads the config and the profile told by common flags.
func LoadEnv(commonFlag CommonFlags) (Env, error) {
	cfgpath, err := filepath.Abs(commonFlag.Config)
	if err != nil {
		return Env{}, err
	}
	cfg, err := pconfig.Load(cfgpath)
	if err != nil {
		if errors.Is(err, pconfig.ErrConfigNotFound) {
			return Env{}, fmt.Errorf(
				"%w: %s. Please try `mkpipe init` first, or pass --config", err, cfgpath,
			)
		}
		return Env{}, fmt.Errorf("%w: failed to load pipeline config (%s)", err, cfgpath)
	}

	profile, err := LoadProfile(commonFlag)
	if err != nil {
		return Env{}, err
	}

	return Env{
		ConfigPath: cfgpath,
		Config:     cfg,
		Profile:    profile,
		Slurm:      slurm.NewClient(),
	}, nil
}

// LoadProfile returns the profile named by --profile. It is nil when no profile is named.
func LoadProfile(commonFlag CommonFlags) (*site.Profile, error) {
	if commonFlag.Profile == "" {
		return nil, nil
	}
	store, err := site.LoadProfileStore(commonFlag.ProfileStore)
	if err != nil {
		if errors.Is(err, site.ErrProfileStoreNotFound) {
			return nil, fmt.Errorf(
				"%w: profile '%s' is named but no store is there. Ask your admin to get the site profile",
				err, commonFlag.Profile,
			)
		}
		return nil, fmt.Errorf("%w: failed to load profile store (%s)", err, commonFlag.ProfileStore)
	}
	prof, err := store.Get(commonFlag.Profile)
	if err != nil {
		return nil, fmt.Errorf("%w (in %s)", err, commonFlag.ProfileStore)
	}
	if err := prof.Verify(); err != nil {
		return nil, fmt.Errorf("%w: profile '%s' in %s", err, commonFlag.Profile, commonFlag.ProfileStore)
	}
	return prof, nil
}
