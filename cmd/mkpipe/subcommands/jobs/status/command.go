package status

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/jobs/internal/table"
	"github.com/meerkat-pipeline/mkpipe/pkg/loop"
	"github.com/meerkat-pipeline/mkpipe/pkg/slurm"
	"github.com/youta-t/flarc"
)

var ErrJobsFailed = errors.New("some jobs have failed")

type Flags struct {
	Follow   bool          `flag:"follow" alias:"f" help:"Wait until every job finishes, showing progress."`
	Interval time.Duration `flag:"interval" metavar:"DURATION" help:"Polling interval for --follow."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show states of recorded jobs.",
		Flags{Interval: 30 * time.Second},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Show states of recorded jobs in SLURM accounting.

With --follow, it polls the scheduler until every job finishes.
It exits with error when some jobs have finished without success.
`),
	)
}

const progress pb.ProgressBarTemplate = `{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{bar . }} {{etime . }}`

func Task(
	ctx context.Context,
	logger *log.Logger,
	e common.Env,
	cl flarc.Commandline[Flags],
	params []any,
) error {
	ids, err := table.Recorded(e)
	if err != nil {
		return err
	}
	flags := cl.Flags()

	var infos []slurm.JobInfo
	if flags.Follow {
		infos, err = Follow(ctx, e.Slurm, ids, flags.Interval, cl.Stderr())
	} else {
		infos, err = e.Slurm.Accounting(ctx, ids...)
	}
	if err != nil {
		return err
	}

	if err := table.States(cl.Stdout(), infos); err != nil {
		return err
	}
	if _, failed := table.Count(infos); len(failed) != 0 {
		names := make([]string, 0, len(failed))
		for _, f := range failed {
			names = append(names, fmt.Sprintf("%s (%s: %s)", f.Name, f.ID, f.State))
		}
		return fmt.Errorf("%w: %v", ErrJobsFailed, names)
	}
	return nil
}

// Follow polls accounting of jobs until all of them are in terminal states,
// drawing a progress bar on w.
func Follow(
	ctx context.Context,
	client common.Slurm,
	ids []slurm.JobID,
	interval time.Duration,
	w io.Writer,
) ([]slurm.JobInfo, error) {
	bar := progress.New(len(ids))
	bar.SetWriter(w)
	bar.Set("prefix", "jobs finished:")
	bar.Start()
	defer bar.Finish()

	return loop.Start(
		ctx, []slurm.JobInfo{},
		func(ctx context.Context, last []slurm.JobInfo) ([]slurm.JobInfo, loop.Next) {
			infos, err := client.Accounting(ctx, ids...)
			if err != nil {
				return last, loop.Break(err)
			}
			terminal, failed := table.Count(infos)
			bar.SetCurrent(int64(terminal))
			if len(failed) != 0 {
				bar.Set("prefix", fmt.Sprintf("jobs finished (%d failed):", len(failed)))
			}
			if len(infos) == len(ids) && terminal == len(ids) {
				return infos, loop.Break(nil)
			}
			return infos, loop.Continue(interval)
		},
	)
}
