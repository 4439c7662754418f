package build

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/pipeline"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Submit     bool   `flag:"submit" alias:"s" help:"Submit jobs after writing them. [slurm] submit = True does the same."`
	Executable string `flag:"executable" metavar:"PATH" help:"mkpipe command called in batch scripts."`
}

// DefaultExecutable is the path to the running mkpipe, or "mkpipe" when it is unknown.
func DefaultExecutable() string {
	exe, err := os.Executable()
	if err != nil {
		return "mkpipe"
	}
	return exe
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Write batch scripts of the pipeline.",
		Flags{Executable: DefaultExecutable()},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Validate the pipeline config, and write batch scripts of every job,
configs of spectral windows and `+pipeline.SubmitScript+` next to the config.

Run `+pipeline.SubmitScript+` (or pass --submit) to queue the jobs.
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
	b, err := Prepare(e, flags.Executable)
	if err != nil {
		return err
	}
	logger.Printf("%d jobs are written in %s", len(b.Steps), filepath.Join(b.Dir, pipeline.JobScriptDir))

	submit := flags.Submit
	if !submit && e.Config.Has(pconfig.SectionSlurm, "submit") {
		if submit, err = e.Config.Bool(pconfig.SectionSlurm, "submit"); err != nil {
			return err
		}
	}
	if !submit {
		fmt.Fprintln(cl.Stdout(), filepath.Join(b.Dir, pipeline.SubmitScript))
		return nil
	}
	return Submit(ctx, logger, cl.Stdout(), e, b)
}

// Prepare validates the config of env, plans the pipeline and writes its files.
func Prepare(e common.Env, executable string) (*pipeline.Build, error) {
	opts := e.Options()
	opts.Executable = executable
	if err := pipeline.Validate(e.Config, opts); err != nil {
		return nil, err
	}
	b, err := pipeline.Plan(e.Config, opts)
	if err != nil {
		return nil, err
	}
	if err := b.Write(); err != nil {
		return nil, err
	}
	return b, nil
}

// Submit queues jobs of the build, and prints "<job name>: <job id>" for each.
func Submit(ctx context.Context, logger *log.Logger, w io.Writer, e common.Env, b *pipeline.Build) error {
	ids, err := pipeline.Submit(ctx, b, e.Slurm)
	if err != nil {
		return err
	}
	for _, s := range b.Steps {
		fmt.Fprintf(w, "%s: %s\n", s.Name, s.JobID)
	}
	logger.Printf("%d jobs are submitted", len(ids))
	return nil
}
