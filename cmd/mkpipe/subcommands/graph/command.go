package graph

import (
	"context"
	"log"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	"github.com/meerkat-pipeline/mkpipe/pkg/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/slurm"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Status bool `flag:"status" alias:"s" help:"Colour jobs by their states in SLURM accounting."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Print the job graph of the pipeline in dot format.",
		Flags{},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Print the job graph of the pipeline in dot format.
Pipe it to graphviz to get an image, for example:

	{{ .Command }} --status | dot -Tsvg > pipeline.svg

With --status, recorded jobs are looked up in SLURM accounting and coloured by their states.
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
	b, err := Tracked(ctx, e, cl.Flags().Status)
	if err != nil {
		return err
	}
	return b.Graph.GenerateDot(cl.Stdout())
}

// Tracked plans the pipeline of env and puts recorded jobs on it.
//
// When withStatus is true, states of jobs are taken from the scheduler.
func Tracked(ctx context.Context, e common.Env, withStatus bool) (*pipeline.Build, error) {
	b, err := pipeline.Plan(e.Config, e.Options())
	if err != nil {
		return nil, err
	}
	ids, err := pipeline.RecordedJobs(e.Config)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return b, nil
	}

	infos := []slurm.JobInfo{}
	if withStatus {
		if infos, err = e.Slurm.Accounting(ctx, ids...); err != nil {
			return nil, err
		}
	}
	if err := b.Track(ids, infos); err != nil {
		return nil, err
	}
	return b, nil
}
