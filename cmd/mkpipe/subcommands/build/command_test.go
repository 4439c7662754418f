package build_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/build"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/internal/commandline"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/internal/testenv"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/logger"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/utils/try"
)

func TestTask(t *testing.T) {
	type when struct {
		flags  build.Flags
		modify func(*pconfig.Config)
	}
	type then struct {
		err       error
		submitted int
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			env, mock := testenv.New(t, when.modify)
			mock.Sequential()

			stdout := new(strings.Builder)
			err := build.Task(
				context.Background(),
				logger.Null(),
				env,
				commandline.MockCommandline[build.Flags]{
					Fullname_: "mkpipe build",
					Stdout_:   stdout,
					Stderr_:   new(strings.Builder),
					Flags_:    when.flags,
				},
				[]any{},
			)
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}

			dir := env.Dir()
			scripts := try.To(filepath.Glob(filepath.Join(dir, pipeline.JobScriptDir, "*.sbatch"))).OrFatal(t)
			if len(scripts) != 20 {
				t.Errorf("%d batch scripts are written", len(scripts))
			}
			if _, err := os.Stat(filepath.Join(dir, pipeline.SubmitScript)); err != nil {
				t.Error(err)
			}

			if len(mock.Calls.Submit) != then.submitted {
				t.Errorf("%d jobs are submitted, want %d", len(mock.Calls.Submit), then.submitted)
			}
			if then.submitted == 0 {
				if got := strings.TrimSpace(stdout.String()); got != filepath.Join(dir, pipeline.SubmitScript) {
					t.Errorf("stdout = %q", got)
				}
				return
			}

			lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
			if len(lines) != then.submitted || !strings.HasPrefix(lines[0], "calc_refant: 10") {
				t.Errorf("unexpected stdout:\n%s", stdout)
			}
			recorded := try.To(pipeline.RecordedJobs(testenv.Reload(t, env))).OrFatal(t)
			if len(recorded) != then.submitted {
				t.Errorf("%d jobs are recorded", len(recorded))
			}
			if _, err := os.Stat(filepath.Join(dir, pipeline.KillScript)); err != nil {
				t.Error(err)
			}
		}
	}

	t.Run("it writes batch scripts", theory(
		when{flags: build.Flags{Executable: "mkpipe"}},
		then{},
	))

	t.Run("with --submit, it submits jobs", theory(
		when{flags: build.Flags{Executable: "mkpipe", Submit: true}},
		then{submitted: 20},
	))

	t.Run("with [slurm] submit = True, it submits jobs", theory(
		when{
			flags: build.Flags{Executable: "mkpipe"},
			modify: func(c *pconfig.Config) {
				c.Set(pconfig.SectionSlurm, "submit", pconfig.Bool(true))
			},
		},
		then{submitted: 20},
	))

	t.Run("when the config is invalid, it writes nothing", theory(
		when{
			flags: build.Flags{Executable: "mkpipe"},
			modify: func(c *pconfig.Config) {
				c.Set(pconfig.SectionFields, "targetfields", pconfig.String(""))
			},
		},
		then{err: pipeline.ErrInvalidConfig},
	))
}
