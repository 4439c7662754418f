// Package table prints jobs of the pipeline.
package table

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	"github.com/meerkat-pipeline/mkpipe/pkg/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/slurm"
)

var ErrNoJobs = errors.New("no jobs are recorded")

// Recorded returns job ids recorded in the config of env.
func Recorded(e common.Env) ([]slurm.JobID, error) {
	ids, err := pipeline.RecordedJobs(e.Config)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w in %s. submit the pipeline first", ErrNoJobs, e.ConfigPath)
	}
	return ids, nil
}

// States prints states of jobs.
func States(w io.Writer, infos []slurm.JobInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOBID\tNAME\tSTATE\tEXITCODE\tELAPSED")
	for _, i := range infos {
		fmt.Fprintf(
			tw, "%s\t%s\t%s\t%s\t%s\n",
			i.ID, orDash(i.Name), orDash(string(i.State)), orDash(i.ExitCode), slurm.FormatTime(i.Elapsed),
		)
	}
	return tw.Flush()
}

// Resources prints resources used by jobs.
func Resources(w io.Writer, infos []slurm.JobInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOBID\tNAME\tPARTITION\tELAPSED\tNODES\tTASKS\tCPUS\tMAXRSS\tSTATE")
	for _, i := range infos {
		rss := "-"
		if !i.MaxRSS.IsZero() {
			rss = slurm.FormatMemory(i.MaxRSS)
		}
		fmt.Fprintf(
			tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			i.ID, orDash(i.Name), orDash(i.Partition), slurm.FormatTime(i.Elapsed),
			i.Nodes, i.Tasks, i.CPUs, rss, orDash(string(i.State)),
		)
	}
	return tw.Flush()
}

// Count counts jobs in terminal states and failed jobs among them.
func Count(infos []slurm.JobInfo) (terminal int, failed []slurm.JobInfo) {
	failed = []slurm.JobInfo{}
	for _, i := range infos {
		if !i.State.IsTerminal() {
			continue
		}
		terminal += 1
		if !i.State.IsSuccess() {
			failed = append(failed, i)
		}
	}
	return terminal, failed
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
