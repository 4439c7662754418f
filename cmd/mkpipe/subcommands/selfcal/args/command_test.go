package args_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/internal/commandline"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/internal/testenv"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/logger"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/selfcal/args"
	"github.com/meerkat-pipeline/mkpipe/pkg/bookkeeping"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	kargs "github.com/meerkat-pipeline/mkpipe/pkg/utils/args"
)

func TestTask(t *testing.T) {
	type when struct {
		loop   string
		modify func(*pconfig.Config)
		files  map[string]string
	}
	type then struct {
		err       error
		threshold string
		image     string
		final     bool
		decision  bookkeeping.Decision
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			env, _ := testenv.New(t, when.modify)
			for name, content := range when.files {
				if err := os.WriteFile(filepath.Join(env.Dir(), name), []byte(content), 0644); err != nil {
					t.Fatal(err)
				}
			}

			flag := &kargs.Loop{}
			if when.loop != "" {
				if err := flag.Set(when.loop); err != nil {
					t.Fatal(err)
				}
			}

			stdout := new(strings.Builder)
			err := args.Task(
				context.Background(),
				logger.Null(),
				env,
				commandline.MockCommandline[args.Flags]{
					Fullname_: "mkpipe selfcal args",
					Stdout_:   stdout,
					Stderr_:   new(strings.Builder),
					Flags_:    args.Flags{Loop: flag},
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

			actual := bookkeeping.LoopArgs{}
			if err := json.Unmarshal([]byte(stdout.String()), &actual); err != nil {
				t.Fatal(err)
			}
			if actual.Threshold != then.threshold {
				t.Errorf("threshold = %s, want %s", actual.Threshold, then.threshold)
			}
			if actual.Names.Image != then.image {
				t.Errorf("image = %s, want %s", actual.Names.Image, then.image)
			}
			if actual.Final != then.final {
				t.Errorf("final = %v", actual.Final)
			}
			if then.final != (actual.Solve == nil) {
				t.Errorf("solve = %v", actual.Solve)
			}
			if actual.Decision != then.decision {
				t.Errorf("decision = %+v, want %+v", actual.Decision, then.decision)
			}
		}
	}

	t.Run("without --loop, it tells the loop in the config", theory(
		when{},
		then{threshold: "0.5mJy", image: "1491291289_im_0.image.tt0"},
	))

	t.Run("current is the loop in the config", theory(
		when{
			loop:   "current",
			modify: func(c *pconfig.Config) { c.Set(pconfig.SectionSelfcal, "loop", pconfig.Int(1)) },
			files:  map[string]string{"1491291289_im_0.rms": "2e-5\n"},
		},
		then{threshold: "0.0002Jy", image: "1491291289_im_1.image.tt0"},
	))

	t.Run("a relative threshold needs the rms of the previous loop", theory(
		when{loop: "1"},
		then{err: bookkeeping.ErrNoRMS},
	))

	t.Run("the final loop has no solve", theory(
		when{
			loop:  "2",
			files: map[string]string{"1491291289_im_1.rms": "1e-5"},
		},
		then{
			threshold: "0.0001Jy",
			image:     "1491291289_im_2.image.tt0",
			final:     true,
			decision:  bookkeeping.Decision{SkipSolve: true},
		},
	))

	t.Run("existing products are skipped", theory(
		when{
			files: map[string]string{
				"1491291289_im_0.image.tt0": "",
				"1491291289.gcal0":          "",
			},
		},
		then{
			threshold: "0.5mJy",
			image:     "1491291289_im_0.image.tt0",
			decision:  bookkeeping.Decision{SkipImaging: true, SkipSolve: true},
		},
	))
}
