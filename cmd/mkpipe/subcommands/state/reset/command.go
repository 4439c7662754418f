package reset

import (
	"context"
	"log"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Let the pipeline continue again.",
		struct{}{},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Set [run] continue = True and clear [run] failed_step.
Use it before resubmitting jobs after a failure.
`),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	e common.Env,
	cl flarc.Commandline[struct{}],
	params []any,
) error {
	return pconfig.Update(ctx, e.ConfigPath, func(c *pconfig.Config) error {
		c.Set(pconfig.SectionRun, "continue", pconfig.Bool(true))
		c.Set(pconfig.SectionRun, "failed_step", pconfig.String(""))
		return nil
	})
}
