package show_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/config/show"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/internal/commandline"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/internal/testenv"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/logger"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
)

func run(t *testing.T, flags show.Flags) (string, error) {
	t.Helper()
	env, _ := testenv.New(t, nil)
	stdout := new(strings.Builder)
	err := show.Task(
		context.Background(),
		logger.Null(),
		env,
		commandline.MockCommandline[show.Flags]{
			Fullname_: "mkpipe config show",
			Stdout_:   stdout,
			Stderr_:   new(strings.Builder),
			Flags_:    flags,
		},
		[]any{},
	)
	return stdout.String(), err
}

func TestTask(t *testing.T) {
	t.Run("it shows every section", func(t *testing.T) {
		out, err := run(t, show.Flags{})
		if err != nil {
			t.Fatal(err)
		}
		content := map[string]map[string]any{}
		if err := json.Unmarshal([]byte(out), &content); err != nil {
			t.Fatal(err)
		}
		for _, sec := range []string{"data", "fields", "slurm", "crosscal", "run", "selfcal", "image"} {
			if _, ok := content[sec]; !ok {
				t.Errorf("section %s is missing", sec)
			}
		}
		if content["data"]["vis"] != testenv.Vis {
			t.Errorf("vis = %v", content["data"]["vis"])
		}
		if content["selfcal"]["nloops"] != float64(2) {
			t.Errorf("nloops = %v", content["selfcal"]["nloops"])
		}
	})

	t.Run("it shows a section", func(t *testing.T) {
		out, err := run(t, show.Flags{Section: "run"})
		if err != nil {
			t.Fatal(err)
		}
		content := map[string]any{}
		if err := json.Unmarshal([]byte(out), &content); err != nil {
			t.Fatal(err)
		}
		if content["continue"] != true {
			t.Errorf("continue = %v", content["continue"])
		}
	})

	t.Run("a missing section is an error", func(t *testing.T) {
		_, err := run(t, show.Flags{Section: "nothing"})
		if !errors.Is(err, pconfig.ErrKeyNotFound) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
