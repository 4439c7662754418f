package validate_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/config/validate"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/internal/commandline"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/internal/testenv"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/logger"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/configs/site"
	"github.com/meerkat-pipeline/mkpipe/pkg/pipeline"
)

func TestTask(t *testing.T) {
	type when struct {
		modify  func(*pconfig.Config)
		profile *site.Profile
	}
	type then struct {
		err error
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			env, _ := testenv.New(t, when.modify)
			env.Profile = when.profile

			stdout := new(strings.Builder)
			err := validate.Task(
				context.Background(),
				logger.Null(),
				env,
				commandline.MockCommandline[struct{}]{
					Fullname_: "mkpipe config validate",
					Stdout_:   stdout,
					Stderr_:   new(strings.Builder),
				},
				[]any{},
			)
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !strings.HasSuffix(stdout.String(), ": ok\n") {
				t.Errorf("stdout = %q", stdout.String())
			}
		}
	}

	t.Run("a valid config is ok", theory(when{}, then{}))

	t.Run("a config exceeding site limits is not ok", theory(
		when{profile: &site.Profile{Limits: site.Limits{MaxNodes: 1}}, modify: func(c *pconfig.Config) {
			c.Set(pconfig.SectionSlurm, "nodes", pconfig.Int(2))
		}},
		then{err: site.ErrExceedsLimits},
	))

	t.Run("a config without vis is not ok", theory(
		when{modify: func(c *pconfig.Config) {
			c.Set(pconfig.SectionData, "vis", pconfig.String(""))
		}},
		then{err: pipeline.ErrInvalidConfig},
	))
}
