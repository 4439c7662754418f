package set

import (
	"context"
	"fmt"
	"log"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/youta-t/flarc"
)

const (
	ARG_KEY   = "SECTION.KEY"
	ARG_VALUE = "VALUE"
)

type Flags struct {
	String bool `flag:"string" alias:"s" help:"Take VALUE as a string as it is, not as a literal."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Write a value into the pipeline config.",
		Flags{},
		flarc.Args{
			{
				Name: ARG_KEY, Required: true,
				Help: "key to be written, like crosscal.refant",
			},
			{
				Name: ARG_VALUE, Required: true,
				Help: "value to be written, as a Python literal",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Write a value into the pipeline config. The config is locked while it is updated,
so jobs running concurrently do not lose their changes.

VALUE is a Python literal, like 'm005', 42, True or ['0.5mJy', 10].
A text which is not a literal is taken as a string.

Example:

	{{ .Command }} crosscal.refant m005
	{{ .Command }} selfcal.threshold "['0.5mJy', 10, 10]"
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
	section, key, err := pconfig.SplitKey(cl.Args()[ARG_KEY][0])
	if err != nil {
		return fmt.Errorf("%w: %w", flarc.ErrUsage, err)
	}
	text := cl.Args()[ARG_VALUE][0]

	value := pconfig.String(text)
	if !cl.Flags().String {
		if value, err = pconfig.Parse(text); err != nil {
			return fmt.Errorf("%w: %w", flarc.ErrUsage, err)
		}
	}

	if err := pconfig.Update(ctx, e.ConfigPath, func(c *pconfig.Config) error {
		c.Set(section, key, value)
		return nil
	}); err != nil {
		return err
	}
	logger.Printf("[%s] %s = %s", section, key, value.Literal())
	return nil
}
