package submit

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/build"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	"github.com/meerkat-pipeline/mkpipe/pkg/pipeline"
	"github.com/youta-t/flarc"
)

var ErrSubmittedAlready = errors.New("jobs are submitted already")

type Flags struct {
	Force      bool   `flag:"force" alias:"f" help:"Submit even if jobs are recorded in the config."`
	Executable string `flag:"executable" metavar:"PATH" help:"mkpipe command called in batch scripts."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Write batch scripts of the pipeline and submit them.",
		Flags{Executable: build.DefaultExecutable()},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Write batch scripts as "build" does, and submit them to SLURM with dependencies between jobs.

Job ids are recorded into [run] jobids of the config, and helper scripts
(killJobs.sh, summary.sh, findErrors.sh, cleanup.sh) are written.

If jobs are recorded already, it refuses to submit again unless --force is passed.
`),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	e common.Env,
	cl flarc.Commandline[Flags],
	params []any,
) error {
	flags := cl.Flags()

	recorded, err := pipeline.RecordedJobs(e.Config)
	if err != nil {
		return err
	}
	if 0 < len(recorded) && !flags.Force {
		return fmt.Errorf(
			"%w: %d jobs in [run] jobids. Try `mkpipe jobs status`, or pass --force", ErrSubmittedAlready, len(recorded),
		)
	}

	b, err := build.Prepare(e, flags.Executable)
	if err != nil {
		return err
	}
	return build.Submit(ctx, logger, cl.Stdout(), e, b)
}
