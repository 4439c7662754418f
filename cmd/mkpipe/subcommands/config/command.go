package config

import (
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/config/get"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/config/set"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/config/show"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/config/sync"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/config/validate"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	get, err := get.New()
	if err != nil {
		return nil, err
	}
	set, err := set.New()
	if err != nil {
		return nil, err
	}
	show, err := show.New()
	if err != nil {
		return nil, err
	}
	sync, err := sync.New()
	if err != nil {
		return nil, err
	}
	validate, err := validate.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Read and write the pipeline config.",
		struct{}{},
		flarc.WithSubcommand("get", get),
		flarc.WithSubcommand("set", set),
		flarc.WithSubcommand("show", show),
		flarc.WithSubcommand("sync", sync),
		flarc.WithSubcommand("validate", validate),
	)
}
