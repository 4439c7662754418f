package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	"github.com/meerkat-pipeline/mkpipe/pkg/bookkeeping"
	"github.com/meerkat-pipeline/mkpipe/pkg/pipeline"
	"github.com/youta-t/flarc"
)

type Flags struct {
	DryRun bool `flag:"dry-run" alias:"n" help:"Print paths to be removed without removing them."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Remove intermediate products of the pipeline.",
		Flags{},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Remove intermediate products of the pipeline:
multi-measurement sets (unless [crosscal] keepmms is True), "*.last" files
and masks of self-calibration loops, in the directory of the config
and in directories of spectral windows.

Removed paths are printed, relative to the directory of the config.
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
	b, err := pipeline.Plan(e.Config, e.Options())
	if err != nil {
		return err
	}
	found, err := Find(b)
	if err != nil {
		return err
	}

	dryrun := cl.Flags().DryRun
	for _, p := range found {
		rel, err := filepath.Rel(b.Dir, p)
		if err != nil {
			rel = p
		}
		if dryrun {
			fmt.Fprintf(cl.Stdout(), "would remove %s\n", rel)
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			return err
		}
		fmt.Fprintf(cl.Stdout(), "removed %s\n", rel)
	}
	if len(found) == 0 {
		logger.Println("nothing to remove.")
	}
	return nil
}

// Find returns existing intermediate products of the build.
func Find(b *pipeline.Build) ([]string, error) {
	names, err := bookkeeping.Intermediates(b.Config, b.SubDirs())
	if err != nil {
		return nil, err
	}

	ret := []string{}
	for _, n := range names {
		p := filepath.Join(b.Dir, filepath.FromSlash(n))
		if strings.Contains(n, "*") {
			matched, err := filepath.Glob(p)
			if err != nil {
				return nil, err
			}
			ret = append(ret, matched...)
			continue
		}
		if _, err := os.Lstat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		ret = append(ret, p)
	}
	slices.Sort(ret)
	return slices.Compact(ret), nil
}
