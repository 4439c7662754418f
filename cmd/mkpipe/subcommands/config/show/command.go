package show

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Section string `flag:"section" metavar:"SECTION" help:"Show only this section."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show the pipeline config as JSON.",
		Flags{},
		flarc.Args{},
		common.NewTask(Task),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	e common.Env,
	cl flarc.Commandline[Flags],
	params []any,
) error {
	var content any = e.Config.ToMap()
	if section := cl.Flags().Section; section != "" {
		if !e.Config.HasSection(section) {
			return fmt.Errorf("%w: [%s]", pconfig.ErrKeyNotFound, section)
		}
		content = e.Config.ToMap()[section]
	}

	enc := json.NewEncoder(cl.Stdout())
	enc.SetIndent("", "    ")
	return enc.Encode(content)
}
