package init

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/youta-t/flarc"
)

var ErrConfigExists = errors.New("config file exists already")

type Flags struct {
	Vis   string `flag:"vis" metavar:"PATH" help:"measurement set to be processed. It is written to [data] vis."`
	Force bool   `flag:"force" alias:"f" help:"overwrite the config file if it exists."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Write a pipeline config with default values.",
		Flags{},
		flarc.Args{},
		common.NewTaskWithCommonFlag(Task),
		flarc.WithDescription(`
Write a pipeline config with default values to the path given by --config
(default: ./default_config.txt).

When a site profile is chosen (--profile, or the name in .mkprofile),
its account, partition, container, modules and script directory are written into the config.
`),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	commonFlag common.CommonFlags,
	cl flarc.Commandline[Flags],
	params []any,
) error {
	flags := cl.Flags()
	path, err := filepath.Abs(commonFlag.Config)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !flags.Force {
		return fmt.Errorf("%w: %s. Pass --force to overwrite", ErrConfigExists, path)
	}

	profile, err := common.LoadProfile(commonFlag)
	if err != nil {
		return err
	}

	cfg := pconfig.Default()
	if profile != nil {
		profile.Apply(cfg)
	}
	if flags.Vis != "" {
		cfg.Set(pconfig.SectionData, "vis", pconfig.String(flags.Vis))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	logger.Printf("config is written: %s", path)
	fmt.Fprintln(cl.Stdout(), path)
	return nil
}
