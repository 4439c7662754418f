package record

import (
	"context"
	"fmt"
	"log"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	"github.com/meerkat-pipeline/mkpipe/pkg/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/slurm"
	"github.com/youta-t/flarc"
)

const ARG_JOBID = "JOBID"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Record ids of submitted jobs and write helper scripts.",
		struct{}{},
		flarc.Args{
			{
				Name: ARG_JOBID, Required: true, Repeatable: true,
				Help: "Job id. Ids may be also separated by commas.",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Record ids of submitted jobs into [run] jobids of the config,
and write scripts to kill them, summarize them, find errors in their logs
and remove intermediate products.

The submit script calls this after it submits jobs. Ids are in the order of jobs in the script.
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
	ids := []slurm.JobID{}
	for _, arg := range cl.Args()[ARG_JOBID] {
		i, err := slurm.ParseJobIDs(arg)
		if err != nil {
			return fmt.Errorf("%w: %w", flarc.ErrUsage, err)
		}
		ids = append(ids, i...)
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: no job ids", flarc.ErrUsage)
	}

	b, err := pipeline.Plan(e.Config, e.Options())
	if err != nil {
		return err
	}
	if len(ids) != len(b.Steps) {
		logger.Printf("%d ids are given for %d jobs.", len(ids), len(b.Steps))
	}

	if err := pipeline.RecordJobs(ctx, e.ConfigPath, ids); err != nil {
		return err
	}
	helpers, err := b.Helpers(ids)
	if err != nil {
		return err
	}
	if err := pipeline.WriteHelpers(b.Dir, helpers); err != nil {
		return err
	}
	logger.Printf("%d jobs are recorded.", len(ids))
	return nil
}
