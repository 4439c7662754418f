package sync

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/pipeline"
	"github.com/youta-t/flarc"
)

type Flags struct {
	From string `flag:"from" metavar:"PATH" help:"config of the whole band to copy state from"`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Copy state of the whole band into the config of a spectral window.",
		Flags{},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Copy state written by jobs on the whole band into the config of a spectral window:
the measurement set, fields and the reference antenna.
Relative paths are taken from the directory of the config given by --from.

Jobs on spectral windows run this before their scripts.

Example:

	{{ .Command }} --config '880~1280MHz/default_config.txt' --from default_config.txt
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
	from := cl.Flags().From
	if from == "" {
		return fmt.Errorf("%w: --from is required", flarc.ErrUsage)
	}
	from, err := filepath.Abs(from)
	if err != nil {
		return err
	}
	if same, err := filepath.Abs(e.ConfigPath); err == nil && same == from {
		return fmt.Errorf("%w: --from is the config itself", flarc.ErrUsage)
	}

	parent, err := pconfig.Load(from)
	if err != nil {
		return err
	}

	changes := []pconfig.Change{}
	if err := pconfig.Update(ctx, e.ConfigPath, func(c *pconfig.Config) error {
		before := c.Clone()
		if err := pipeline.SyncSPWConfig(c, parent, filepath.Dir(from)); err != nil {
			return err
		}
		changes = pconfig.Diff(before, c)
		return nil
	}); err != nil {
		return err
	}

	if len(changes) == 0 {
		logger.Printf("nothing to sync from %s", from)
		return nil
	}
	for _, c := range changes {
		logger.Printf("sync %s", c)
	}
	return nil
}
