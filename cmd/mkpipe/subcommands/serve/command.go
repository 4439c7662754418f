package serve

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/serve/handlers"
	"github.com/meerkat-pipeline/mkpipe/pkg/utils/echoutil"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Addr     string `flag:"addr" alias:"a" metavar:"HOST:PORT" help:"Address to listen."`
	Loglevel string `flag:"loglevel" metavar:"LEVEL" help:"Log level of the server. debug|info|warn|error|off"`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Serve the state of the pipeline over HTTP.",
		Flags{Addr: "127.0.0.1:8470", Loglevel: "info"},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Serve the state of the pipeline as a read-only HTTP API:

	GET /api/health
	GET /api/config, /api/config/<SECTION>
	GET /api/jobs
	GET /api/graph (dot format. ?status=false to skip the scheduler)
	GET /api/selfcal

The config is read again each time it is modified.
The server stops gracefully on interrupt.
`),
	)
}

const shutdownTimeout = 15 * time.Second

func Task(
	ctx context.Context,
	logger *log.Logger,
	e common.Env,
	cl flarc.Commandline[Flags],
	params []any,
) error {
	flags := cl.Flags()
	snap := NewSnapshot(e)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := snap.Follow(ctx, logger); err != nil {
			logger.Printf("config is not followed anymore: %v", err)
		}
	}()

	srv := NewServer(snap.Env, flags.Loglevel)
	errch := make(chan error, 1)
	go func() {
		logger.Printf("listening %s", flags.Addr)
		errch <- srv.Start(flags.Addr)
	}()

	select {
	case err := <-errch:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	graceful, gcancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer gcancel()
	if err := srv.Shutdown(graceful); err != nil {
		return err
	}
	if err := <-errch; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Println("server is stopped.")
	return nil
}

// NewServer builds a server with routes of the API.
func NewServer(source handlers.EnvSource, loglevel string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	echoutil.SetLevel(e, loglevel)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		e.DefaultHTTPErrorHandler(err, c)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogRequests("/api/health"))
	handlers.Register(e, source)
	return e
}
