package fail

import (
	"context"
	"log"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Step string `flag:"step" metavar:"JOB_NAME" help:"Name of the failed job."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Stop the pipeline because a job has failed.",
		Flags{},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Set [run] continue = False and [run] failed_step, so that following jobs stop.

Batch scripts run this when their work fails.
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
	step := cl.Flags().Step
	if err := pconfig.Update(ctx, e.ConfigPath, func(c *pconfig.Config) error {
		c.Set(pconfig.SectionRun, "continue", pconfig.Bool(false))
		c.Set(pconfig.SectionRun, "failed_step", pconfig.String(step))
		return nil
	}); err != nil {
		return err
	}
	logger.Printf("pipeline is stopped by %q", step)
	return nil
}
