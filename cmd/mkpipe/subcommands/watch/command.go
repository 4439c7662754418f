package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/utils/filewatch"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Print changes of the pipeline config as jobs write it.",
		struct{}{},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Watch the pipeline config and print each change of it, like

	12:34:56 [crosscal] refant: 'm059' -> 'm005'

until interrupted.
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
	logger.Printf("watching %s", e.ConfigPath)
	return Watch(ctx, logger, e.ConfigPath, e.Config, cl.Stdout())
}

// Watch prints changes of the config at path to w, until ctx is done.
//
// last is the config to compare the first change with.
func Watch(ctx context.Context, logger *log.Logger, path string, last *pconfig.Config, w io.Writer) error {
	return filewatch.Watch(ctx, path, func(ev fsnotify.Event) error {
		if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			// saving replaces the file. the next event tells the new content.
			return nil
		}
		cur, err := pconfig.Load(path)
		if errors.Is(err, pconfig.ErrConfigNotFound) {
			return nil
		}
		if err != nil {
			logger.Printf("cannot read %s: %v", path, err)
			return nil
		}
		now := time.Now().Format(time.TimeOnly)
		for _, c := range pconfig.Diff(last, cur) {
			fmt.Fprintf(w, "%s %s\n", now, c)
		}
		last = cur
		return nil
	})
}
