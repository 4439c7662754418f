package advance_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/internal/commandline"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/internal/testenv"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/logger"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/selfcal/advance"
	"github.com/meerkat-pipeline/mkpipe/pkg/bookkeeping"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/utils/try"
)

func TestTask(t *testing.T) {
	type when struct {
		loop  int64
		flags advance.Flags
	}
	type then struct {
		err    error
		stdout string
		loop   int
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			env, _ := testenv.New(t, func(c *pconfig.Config) {
				c.Set(pconfig.SectionSelfcal, "loop", pconfig.Int(when.loop))
			})
			stdout := new(strings.Builder)
			err := advance.Task(
				context.Background(),
				logger.Null(),
				env,
				commandline.MockCommandline[advance.Flags]{
					Fullname_: "mkpipe selfcal advance",
					Stdout_:   stdout,
					Stderr_:   new(strings.Builder),
					Flags_:    when.flags,
				},
				[]any{},
			)
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Errorf("unexpected error: %v", err)
				}
			} else if err != nil {
				t.Fatal(err)
			} else if got := strings.TrimSpace(stdout.String()); got != then.stdout {
				t.Errorf("stdout = %q, want %q", got, then.stdout)
			}

			cfg := testenv.Reload(t, env)
			if loop := try.To(cfg.Int(pconfig.SectionSelfcal, "loop")).OrFatal(t); loop != then.loop {
				t.Errorf("loop = %d, want %d", loop, then.loop)
			}
		}
	}

	t.Run("it moves to the next loop", theory(
		when{loop: 0},
		then{stdout: "1", loop: 1},
	))
	t.Run("it moves to the final loop", theory(
		when{loop: 1},
		then{stdout: "2", loop: 2},
	))
	t.Run("at the final loop, it does nothing", theory(
		when{loop: 2},
		then{stdout: "2", loop: 2},
	))
	t.Run("at the final loop with --strict, it is an error", theory(
		when{loop: 2, flags: advance.Flags{Strict: true}},
		then{err: bookkeeping.ErrLoopsExhausted, loop: 2},
	))
	t.Run("a loop out of range is an error", theory(
		when{loop: 3},
		then{err: bookkeeping.ErrLoopOutOfRange, loop: 3},
	))
}
