package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	"github.com/meerkat-pipeline/mkpipe/pkg/bookkeeping"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/youta-t/flarc"
)

type Flags struct {
	JSON bool `flag:"json" help:"Print as JSON."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show products of each self-calibration loop.",
		Flags{},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Show the loop counter and which products of each self-calibration loop exist.

The current loop is marked with "*".
`),
	)
}

// Report is the state of self-calibration.
type Report struct {
	bookkeeping.LoopState
	Loops []bookkeeping.LoopInventory `json:"loops"`
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	e common.Env,
	cl flarc.Commandline[Flags],
	params []any,
) error {
	r, err := Inspect(e)
	if err != nil {
		return err
	}

	if cl.Flags().JSON {
		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		return enc.Encode(r)
	}

	w := tabwriter.NewWriter(cl.Stdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tLOOP\tIMAGE\tMASK\tFITS\tCALTABLE\tRMS")
	for _, inv := range r.Loops {
		mark := ""
		if inv.Names.Loop == r.Loop {
			mark = "*"
		}
		caltable := yesno(inv.Caltable)
		if inv.Names.Loop == r.NLoops {
			caltable = "-"
		}
		rms := "-"
		if inv.RMS != nil {
			rms = strconv.FormatFloat(*inv.RMS, 'g', 4, 64) + "Jy"
		}
		fmt.Fprintf(
			w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			mark, inv.Names.Loop,
			yesno(inv.Image), yesno(inv.Mask), yesno(inv.FITS), caltable, rms,
		)
	}
	return w.Flush()
}

func yesno(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

// Inspect reads the loop counter from the config and looks for products in the directory of it.
func Inspect(e common.Env) (Report, error) {
	st, err := bookkeeping.ReadLoopState(e.Config)
	if err != nil {
		return Report{}, err
	}
	lp, err := bookkeeping.ReadLoopParams(e.Config)
	if err != nil {
		return Report{}, err
	}
	vis, err := e.Config.String(pconfig.SectionData, "vis")
	if err != nil {
		return Report{}, err
	}
	if vis == "" {
		return Report{}, bookkeeping.ErrNoVis
	}
	inv, err := bookkeeping.Inventory(os.DirFS(e.Dir()), vis, lp)
	if err != nil {
		return Report{}, err
	}
	return Report{LoopState: st, Loops: inv}, nil
}
