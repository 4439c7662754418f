package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/jobs/internal/table"
	"github.com/meerkat-pipeline/mkpipe/pkg/pipeline"
	"github.com/youta-t/flarc"
)

type Flags struct {
	JSON bool `flag:"json" help:"Print as JSON."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Find errors in logs of recorded jobs.",
		Flags{},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Find lines telling errors in logs of recorded jobs.

Logs are "logs/*-<JOBID>.out", ".err" and ".casa" files in the directory of the config
and in directories of spectral windows.
Lines are matched case-insensitively with:

	`+pipeline.ErrorPattern+`

except lines matching:

	`+pipeline.BenignPattern+`
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
	ids, err := table.Recorded(e)
	if err != nil {
		return err
	}
	b, err := pipeline.Plan(e.Config, e.Options())
	if err != nil {
		return err
	}

	dirs := []string{b.Dir}
	for _, d := range b.SubDirs() {
		dirs = append(dirs, filepath.Join(b.Dir, d))
	}
	problems, err := pipeline.ScanLogs(dirs, ids)
	if err != nil {
		return err
	}

	if cl.Flags().JSON {
		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		return enc.Encode(problems)
	}

	for _, p := range problems {
		name := p.File
		if rel, err := filepath.Rel(b.Dir, p.File); err == nil {
			name = rel
		}
		fmt.Fprintf(cl.Stdout(), "%s:%d: %s\n", name, p.Line, p.Text)
	}
	if len(problems) == 0 {
		logger.Printf("no errors are found in logs of %d jobs.", len(ids))
	}
	return nil
}
