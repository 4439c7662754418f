package state

import (
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/state/check"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/state/fail"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/state/refant"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/state/reset"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	check, err := check.New()
	if err != nil {
		return nil, err
	}
	fail, err := fail.New()
	if err != nil {
		return nil, err
	}
	reset, err := reset.New()
	if err != nil {
		return nil, err
	}
	refant, err := refant.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Read and write the run state shared by jobs.",
		struct{}{},
		flarc.WithSubcommand("check", check),
		flarc.WithSubcommand("fail", fail),
		flarc.WithSubcommand("reset", reset),
		flarc.WithSubcommand("refant", refant),
	)
}
