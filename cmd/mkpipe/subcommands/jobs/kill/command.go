package kill

import (
	"context"
	"fmt"
	"log"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/jobs/internal/table"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Cancel recorded jobs of the pipeline.",
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
	if err := e.Slurm.Cancel(ctx, ids...); err != nil {
		return err
	}
	fmt.Fprintf(cl.Stdout(), "%d jobs are cancelled.\n", len(ids))
	return nil
}
