package advance

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	"github.com/meerkat-pipeline/mkpipe/pkg/bookkeeping"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Strict bool `flag:"strict" help:"Exit with error when all loops are done already."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Move the self-calibration loop counter to the next loop.",
		Flags{},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Increment [selfcal] loop in the config, and print the new loop number.

When the counter is at the final loop, the config is left as it is.
It is an error only with --strict.
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
	var st bookkeeping.LoopState
	err := pconfig.Update(ctx, e.ConfigPath, func(c *pconfig.Config) error {
		var err error
		st, err = bookkeeping.Advance(c)
		return err
	})
	if errors.Is(err, bookkeeping.ErrLoopsExhausted) && !cl.Flags().Strict {
		logger.Printf("loop %d is the final loop. nothing to do.", st.Loop)
		err = nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cl.Stdout(), st.Loop)
	return nil
}
