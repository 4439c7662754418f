package jobs

import (
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/jobs/errors"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/jobs/kill"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/jobs/record"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/jobs/status"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/jobs/summary"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	record, err := record.New()
	if err != nil {
		return nil, err
	}
	status, err := status.New()
	if err != nil {
		return nil, err
	}
	kill, err := kill.New()
	if err != nil {
		return nil, err
	}
	summary, err := summary.New()
	if err != nil {
		return nil, err
	}
	errors, err := errors.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Handle batch jobs of the pipeline.",
		struct{}{},
		flarc.WithSubcommand("record", record),
		flarc.WithSubcommand("status", status),
		flarc.WithSubcommand("kill", kill),
		flarc.WithSubcommand("summary", summary),
		flarc.WithSubcommand("errors", errors),
	)
}
