package refant

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/youta-t/flarc"
)

const ARG_ANTENNA = "ANTENNA"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Record the reference antenna.",
		struct{}{},
		flarc.Args{
			{
				Name: ARG_ANTENNA, Required: true,
				Help: "name of the reference antenna, like m059",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Set [crosscal] refant, and set [crosscal] calcrefant = False
since the reference antenna is decided.
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
	ant := strings.TrimSpace(cl.Args()[ARG_ANTENNA][0])
	if ant == "" {
		return fmt.Errorf("%w: %s is empty", flarc.ErrUsage, ARG_ANTENNA)
	}
	if err := pconfig.Update(ctx, e.ConfigPath, func(c *pconfig.Config) error {
		c.Set(pconfig.SectionCrosscal, "refant", pconfig.String(ant))
		c.Set(pconfig.SectionCrosscal, "calcrefant", pconfig.Bool(false))
		return nil
	}); err != nil {
		return err
	}
	logger.Printf("reference antenna: %s", ant)
	return nil
}
