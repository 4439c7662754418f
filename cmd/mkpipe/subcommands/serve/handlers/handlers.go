// Package handlers serves the state of the pipeline over HTTP.
package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/graph"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/selfcal/status"
	"github.com/meerkat-pipeline/mkpipe/pkg/buildtime"
	"github.com/meerkat-pipeline/mkpipe/pkg/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/slurm"
	"github.com/meerkat-pipeline/mkpipe/pkg/utils/echoutil"
)

// EnvSource returns the env as of now.
type EnvSource func() common.Env

// Register adds routes under /api.
func Register(e *echo.Echo, source EnvSource) {
	api := e.Group("/api")
	api.GET("/health", Health())
	api.GET("/config", ConfigHandler(source))
	api.GET("/config/:section", ConfigHandler(source))
	api.GET("/jobs", JobsHandler(source))
	api.GET("/graph", GraphHandler(source))
	api.GET("/selfcal", SelfcalHandler(source))
}

type HealthStatus struct {
	Status string          `json:"status"`
	Build  buildtime.Build `json:"build"`
}

func Health() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthStatus{Status: "ok", Build: buildtime.Current()})
	}
}

// ConfigHandler responds the config as JSON, or a section of it for the path parameter "section".
func ConfigHandler(source EnvSource) echo.HandlerFunc {
	return func(c echo.Context) error {
		env := source()
		content := env.Config.ToMap()
		section := c.Param("section")
		if section == "" {
			return c.JSON(http.StatusOK, content)
		}
		sec, ok := content[section]
		if !ok {
			return echoutil.NotFound(fmt.Sprintf("section [%s] is not found", section), nil)
		}
		return c.JSON(http.StatusOK, sec)
	}
}

// Job is a recorded job with its state.
type Job struct {
	JobID     string `json:"jobId"`
	Name      string `json:"name"`
	Partition string `json:"partition,omitempty"`
	State     string `json:"state"`
	ExitCode  string `json:"exitCode,omitempty"`
	Elapsed   string `json:"elapsed"`
	MaxRSS    string `json:"maxRss,omitempty"`
}

func JobsHandler(source EnvSource) echo.HandlerFunc {
	return func(c echo.Context) error {
		env := source()
		ids, err := pipeline.RecordedJobs(env.Config)
		if err != nil {
			return echoutil.InternalServerError("jobids in the config are broken", err)
		}
		if len(ids) == 0 {
			return c.JSON(http.StatusOK, []Job{})
		}
		infos, err := env.Slurm.Accounting(c.Request().Context(), ids...)
		if err != nil {
			return echoutil.NewErrorMessage(
				http.StatusBadGateway, "cannot query the scheduler", "check sacct works.", err,
			)
		}
		jobs := make([]Job, 0, len(infos))
		for _, i := range infos {
			j := Job{
				JobID:     string(i.ID),
				Name:      i.Name,
				Partition: i.Partition,
				State:     string(i.State),
				ExitCode:  i.ExitCode,
				Elapsed:   slurm.FormatTime(i.Elapsed),
			}
			if !i.MaxRSS.IsZero() {
				j.MaxRSS = slurm.FormatMemory(i.MaxRSS)
			}
			jobs = append(jobs, j)
		}
		return c.JSON(http.StatusOK, jobs)
	}
}

// GraphHandler responds the job graph in dot format.
//
// Jobs are coloured by their states unless the query parameter "status" is "false".
func GraphHandler(source EnvSource) echo.HandlerFunc {
	return func(c echo.Context) error {
		withStatus := c.QueryParam("status") != "false"
		b, err := graph.Tracked(c.Request().Context(), source(), withStatus)
		if err != nil {
			return echoutil.InternalServerError("cannot plan the pipeline", err)
		}
		buf := new(bytes.Buffer)
		if err := b.Graph.GenerateDot(buf); err != nil {
			return echoutil.InternalServerError("cannot render the job graph", err)
		}
		return c.Blob(http.StatusOK, "text/vnd.graphviz; charset=utf-8", buf.Bytes())
	}
}

func SelfcalHandler(source EnvSource) echo.HandlerFunc {
	return func(c echo.Context) error {
		r, err := status.Inspect(source())
		if err != nil {
			return echoutil.InternalServerError("cannot read the self-calibration state", err)
		}
		return c.JSON(http.StatusOK, r)
	}
}
