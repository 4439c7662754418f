package args

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	"github.com/meerkat-pipeline/mkpipe/pkg/bookkeeping"
	kargs "github.com/meerkat-pipeline/mkpipe/pkg/utils/args"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Loop *kargs.Loop `flag:"loop" alias:"l" metavar:"N" help:"Loop number, or \"current\" for the loop recorded in the config."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Print arguments of a self-calibration loop as JSON.",
		Flags{Loop: &kargs.Loop{}},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Print arguments of a self-calibration loop as JSON.

It tells names of products of the loop, imaging and solving parameters for the loop,
the cleaning threshold as a flux density, and which parts can be skipped
because their products are there already.

Paths are relative to the directory of the config file.
`),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	e common.Env,
	cl flarc.Commandline[Flags],
	params []any,
) error {
	loop, err := Loop(e, cl.Flags().Loop)
	if err != nil {
		return err
	}
	la, err := bookkeeping.Args(e.Config, os.DirFS(e.Dir()), loop)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cl.Stdout())
	enc.SetIndent("", "    ")
	return enc.Encode(la)
}

// Loop resolves the loop number given by flag.
//
// An unset flag or "current" means the loop recorded in the config.
func Loop(e common.Env, flag *kargs.Loop) (int, error) {
	if flag.IsSet() && !flag.IsCurrent() {
		return flag.Value(), nil
	}
	st, err := bookkeeping.ReadLoopState(e.Config)
	if err != nil {
		return 0, err
	}
	return st.Loop, nil
}
