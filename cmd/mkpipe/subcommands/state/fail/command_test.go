package fail_test

import (
	"context"
	"strings"
	"testing"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/internal/commandline"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/internal/testenv"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/logger"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/state/fail"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/utils/try"
)

func TestTask(t *testing.T) {
	env, _ := testenv.New(t, nil)
	err := fail.Task(
		context.Background(),
		logger.Null(),
		env,
		commandline.MockCommandline[fail.Flags]{
			Fullname_: "mkpipe state fail",
			Stdout_:   new(strings.Builder),
			Stderr_:   new(strings.Builder),
			Flags_:    fail.Flags{Step: "setjy"},
		},
		[]any{},
	)
	if err != nil {
		t.Fatal(err)
	}

	cfg := testenv.Reload(t, env)
	if try.To(cfg.Bool(pconfig.SectionRun, "continue")).OrFatal(t) {
		t.Error("continue is still True")
	}
	if step := try.To(cfg.String(pconfig.SectionRun, "failed_step")).OrFatal(t); step != "setjy" {
		t.Errorf("failed_step = %s", step)
	}
	// other keys survive
	if refant := try.To(cfg.String(pconfig.SectionCrosscal, "refant")).OrFatal(t); refant != "m059" {
		t.Errorf("refant = %s", refant)
	}
}
