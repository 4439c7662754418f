package bookkeeping

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
)

var ErrLoopsExhausted = errors.New("all self-calibration loops are done")

// LoopState is the loop counter threaded through the config file.
//
// Loops 0 to NLoops-1 image and solve. Loop NLoops images with the last solution.
type LoopState struct {
	Loop   int `json:"loop"`
	NLoops int `json:"nloops"`
}

func (s LoopState) IsFinal() bool {
	return s.Loop == s.NLoops
}

// ReadLoopState reads [selfcal] loop and nloops. A missing loop is 0.
func ReadLoopState(cfg *pipeline.Config) (LoopState, error) {
	nloops, err := cfg.Int(pipeline.SectionSelfcal, "nloops")
	if err != nil {
		return LoopState{}, err
	}
	loop := 0
	if cfg.Has(pipeline.SectionSelfcal, "loop") {
		if loop, err = cfg.Int(pipeline.SectionSelfcal, "loop"); err != nil {
			return LoopState{}, err
		}
	}
	if loop < 0 || nloops < loop {
		return LoopState{}, fmt.Errorf("%w: loop = %d, nloops = %d", ErrLoopOutOfRange, loop, nloops)
	}
	return LoopState{Loop: loop, NLoops: nloops}, nil
}

// Advance increments the loop counter in cfg.
//
// When the counter is at the final loop already, cfg is not changed and ErrLoopsExhausted is returned.
func Advance(cfg *pipeline.Config) (LoopState, error) {
	st, err := ReadLoopState(cfg)
	if err != nil {
		return LoopState{}, err
	}
	if st.IsFinal() {
		return st, fmt.Errorf("%w: loop = %d", ErrLoopsExhausted, st.Loop)
	}
	st.Loop += 1
	cfg.Set(pipeline.SectionSelfcal, "loop", pipeline.Int(int64(st.Loop)))
	return st, nil
}

// LoopArgs is what a self-calibration job needs to know about its loop.
type LoopArgs struct {
	Vis   string `json:"vis"`
	Loop  int    `json:"loop"`
	Final bool   `json:"final"`

	Names             LoopNames `json:"names"`
	PreviousCaltables []string  `json:"previousCaltables"`

	Image map[string]any `json:"image"`

	// nil at the final loop.
	Solve map[string]any `json:"solve,omitempty"`

	// flux density resolved from the configured threshold
	Threshold string `json:"threshold"`

	Decision Decision `json:"decision"`
}

// Args builds arguments of the loop. Paths of products are looked up in fsys.
func Args(cfg *pipeline.Config, fsys fs.FS, loop int) (*LoopArgs, error) {
	vis, err := cfg.String(pipeline.SectionData, "vis")
	if err != nil {
		return nil, err
	}
	if vis == "" {
		return nil, ErrNoVis
	}
	lp, err := ReadLoopParams(cfg)
	if err != nil {
		return nil, err
	}
	image, err := lp.Image(loop)
	if err != nil {
		return nil, err
	}

	discard := 0
	if cfg.Has(pipeline.SectionSelfcal, "discard_nloops") {
		if discard, err = cfg.Int(pipeline.SectionSelfcal, "discard_nloops"); err != nil {
			return nil, err
		}
	}

	names := SelfcalNames(vis, loop, lp.Nterms(loop))
	args := &LoopArgs{
		Vis:               vis,
		Loop:              loop,
		Final:             loop == lp.NLoops,
		Names:             names,
		PreviousCaltables: names.PreviousCaltables(discard),
		Image:             plain(image),
	}

	if !args.Final {
		solve, err := lp.Solve(loop)
		if err != nil {
			return nil, err
		}
		args.Solve = plain(solve)
	}

	if th, ok := image["threshold"]; ok {
		t, err := ParseThreshold(th)
		if err != nil {
			return nil, err
		}
		if args.Threshold, err = t.Resolve(fsys, vis, loop); err != nil {
			return nil, err
		}
	}

	if args.Decision, err = Decide(fsys, names); err != nil {
		return nil, err
	}
	if args.Final {
		args.Decision.SkipSolve = true
	}
	return args, nil
}

func plain(m map[string]pipeline.Value) map[string]any {
	ret := make(map[string]any, len(m))
	for k, v := range m {
		ret[k] = v.Interface()
	}
	return ret
}
