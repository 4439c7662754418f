package summary

import (
	"context"
	"log"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/jobs/internal/table"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show resources used by recorded jobs.",
		struct{}{},
		flarc.Args{},
		common.NewTask(Task),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	e common.Env,
	cl flarc.Commandline[struct{}],
	params []any,
) error {
	ids, err := table.Recorded(e)
	if err != nil {
		return err
	}
	infos, err := e.Slurm.Accounting(ctx, ids...)
	if err != nil {
		return err
	}
	return table.Resources(cl.Stdout(), infos)
}
