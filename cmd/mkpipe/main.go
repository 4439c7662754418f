package main

import (
	"context"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/build"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/cleanup"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	subconfig "github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/config"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/graph"
	subinit "github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/init"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/jobs"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/logger"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/selfcal"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/serve"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/state"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/submit"
	subver "github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/version"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/watch"
	"github.com/meerkat-pipeline/mkpipe/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func main() {
	logger := logger.Default(path.Base(os.Args[0]))

	// SLURM sends SIGTERM before killing a job.
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()

	cf := try.To(common.Flags(".")).OrFatal(logger)
	init := try.To(subinit.New()).OrFatal(logger)
	build := try.To(build.New()).OrFatal(logger)
	submit := try.To(submit.New()).OrFatal(logger)
	graph := try.To(graph.New()).OrFatal(logger)
	config := try.To(subconfig.New()).OrFatal(logger)
	state := try.To(state.New()).OrFatal(logger)
	selfcal := try.To(selfcal.New()).OrFatal(logger)
	jobs := try.To(jobs.New()).OrFatal(logger)
	cleanup := try.To(cleanup.New()).OrFatal(logger)
	watch := try.To(watch.New()).OrFatal(logger)
	serve := try.To(serve.New()).OrFatal(logger)
	version := try.To(subver.New()).OrFatal(logger)

	mkpipe := try.To(
		flarc.NewCommandGroup(
			"MeerKAT pipeline orchestrator on SLURM",
			cf,
			flarc.WithSubcommand("init", init),
			flarc.WithSubcommand("build", build),
			flarc.WithSubcommand("submit", submit),
			flarc.WithSubcommand("graph", graph),
			flarc.WithSubcommand("config", config),
			flarc.WithSubcommand("state", state),
			flarc.WithSubcommand("selfcal", selfcal),
			flarc.WithSubcommand("jobs", jobs),
			flarc.WithSubcommand("cleanup", cleanup),
			flarc.WithSubcommand("watch", watch),
			flarc.WithSubcommand("serve", serve),
			flarc.WithSubcommand("version", version),
		),
	).OrFatal(logger)

	os.Exit(flarc.Run(ctx, mkpipe, flarc.WithHelp(true)))
}
