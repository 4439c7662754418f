package selfcal

import (
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/selfcal/advance"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/selfcal/args"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/selfcal/status"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	args, err := args.New()
	if err != nil {
		return nil, err
	}
	advance, err := advance.New()
	if err != nil {
		return nil, err
	}
	status, err := status.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Self-calibration loop bookkeeping.",
		struct{}{},
		flarc.WithSubcommand("args", args),
		flarc.WithSubcommand("advance", advance),
		flarc.WithSubcommand("status", status),
	)
}
