package get

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/youta-t/flarc"
)

const ARG_KEY = "SECTION.KEY"

type Flags struct {
	Raw bool `flag:"raw" alias:"r" help:"Print strings without quotes and sequences as comma separated values."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Print a value in the pipeline config.",
		Flags{},
		flarc.Args{
			{
				Name: ARG_KEY, Required: true,
				Help: "key to be read, like crosscal.refant",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Print a value in the pipeline config as a Python literal.

Example:

	{{ .Command }} crosscal.refant
	{{ .Command }} --raw fields.targetfields
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
	section, key, err := pconfig.SplitKey(cl.Args()[ARG_KEY][0])
	if err != nil {
		return fmt.Errorf("%w: %w", flarc.ErrUsage, err)
	}
	v, err := e.Config.Get(section, key)
	if err != nil {
		return err
	}
	out := v.Literal()
	if cl.Flags().Raw {
		out = Raw(v)
	}
	_, err = fmt.Fprintln(cl.Stdout(), out)
	return err
}

// Raw formats v for shell scripts: strings are not quoted, and items of sequences are joined with commas.
func Raw(v pconfig.Value) string {
	if !v.IsSequence() {
		return v.Text()
	}
	items := []string{}
	for _, it := range v.Items() {
		items = append(items, Raw(it))
	}
	return strings.Join(items, ",")
}
