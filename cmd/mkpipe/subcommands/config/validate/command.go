package validate

import (
	"context"
	"fmt"
	"log"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	"github.com/meerkat-pipeline/mkpipe/pkg/pipeline"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Check the pipeline config.",
		struct{}{},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Check the pipeline config: the measurement set, fields, scripts,
resources against limits of the site profile and parameters of self-calibration loops.

Every problem found is reported.
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
	if err := pipeline.Validate(e.Config, e.Options()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(cl.Stdout(), "%s: ok\n", e.ConfigPath)
	return err
}
