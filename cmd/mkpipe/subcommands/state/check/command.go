package check

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/youta-t/flarc"
)

var ErrStopped = errors.New("pipeline is stopped")

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Exit with error when the pipeline is stopped by a failed job.",
		struct{}{},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Exit with error when [run] continue is False.

Batch scripts run this before their work, so jobs after a failed job stop soon.
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
	cont := true
	if e.Config.Has(pconfig.SectionRun, "continue") {
		var err error
		if cont, err = e.Config.Bool(pconfig.SectionRun, "continue"); err != nil {
			return err
		}
	}
	if cont {
		return nil
	}

	failed := ""
	if e.Config.Has(pconfig.SectionRun, "failed_step") {
		failed, _ = e.Config.String(pconfig.SectionRun, "failed_step")
	}
	if failed == "" {
		return fmt.Errorf("%w: [run] continue = False", ErrStopped)
	}
	return fmt.Errorf("%w: %s has failed", ErrStopped, failed)
}
