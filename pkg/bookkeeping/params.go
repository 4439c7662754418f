package bookkeeping

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strconv"
	"strings"

	"github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
)

var (
	ErrLoopParamLength  = errors.New("number of per-loop values does not match nloops")
	ErrLoopOutOfRange   = errors.New("loop is out of range")
	ErrNoRMS            = errors.New("rms of the previous loop is not available")
	ErrInvalidThreshold = errors.New("invalid threshold")
)

// ImageParams are parameters of imaging, done nloops+1 times.
var ImageParams = []string{
	"niter", "threshold", "multiscale", "nterms", "robust",
	"cell", "imsize", "wprojplanes", "gridder", "deconvolver", "uvrange",
}

// SolveParams are parameters of gain solving, done nloops times.
var SolveParams = []string{"solint", "calmode", "gaintype", "flag"}

// vectorParams take a list even as a single value. They are per-loop only when
// given as a list of lists.
var vectorParams = map[string]bool{"imsize": true, "multiscale": true}

// LoopParams are [selfcal] parameters resolved for each loop.
type LoopParams struct {
	NLoops int
	image  map[string][]pipeline.Value
	solve  map[string][]pipeline.Value
}

// ReadLoopParams reads per-loop parameters from [selfcal].
//
// Each parameter is a single value used in every loop, or a list with a value per loop.
// Missing parameters are left to the imaging scripts.
func ReadLoopParams(cfg *pipeline.Config) (*LoopParams, error) {
	nloops, err := cfg.Int(pipeline.SectionSelfcal, "nloops")
	if err != nil {
		return nil, err
	}
	if nloops < 0 {
		return nil, fmt.Errorf("%w: nloops = %d", ErrLoopOutOfRange, nloops)
	}
	lp := &LoopParams{
		NLoops: nloops,
		image:  map[string][]pipeline.Value{},
		solve:  map[string][]pipeline.Value{},
	}
	for _, p := range []struct {
		keys  []string
		count int
		dest  map[string][]pipeline.Value
	}{
		{keys: ImageParams, count: nloops + 1, dest: lp.image},
		{keys: SolveParams, count: nloops, dest: lp.solve},
	} {
		for _, key := range p.keys {
			if !cfg.Has(pipeline.SectionSelfcal, key) {
				continue
			}
			v, err := cfg.Get(pipeline.SectionSelfcal, key)
			if err != nil {
				return nil, err
			}
			values, err := perLoop(key, v, p.count)
			if err != nil {
				return nil, err
			}
			p.dest[key] = values
		}
	}
	return lp, nil
}

func perLoop(key string, v pipeline.Value, count int) ([]pipeline.Value, error) {
	isPerLoop := v.Kind() == pipeline.KindList
	if isPerLoop && vectorParams[key] {
		items := v.Items()
		isPerLoop = 0 < len(items) && items[0].IsSequence()
	}
	if !isPerLoop {
		ret := make([]pipeline.Value, count)
		for i := range ret {
			ret[i] = v
		}
		return ret, nil
	}
	if len(v.Items()) != count {
		return nil, fmt.Errorf(
			"%w: [selfcal] %s has %d values, but %d needed",
			ErrLoopParamLength, key, len(v.Items()), count,
		)
	}
	return v.Items(), nil
}

// Image returns imaging parameters of the loop.
func (lp *LoopParams) Image(loop int) (map[string]pipeline.Value, error) {
	if loop < 0 || lp.NLoops < loop {
		return nil, fmt.Errorf("%w: %d (nloops = %d)", ErrLoopOutOfRange, loop, lp.NLoops)
	}
	return pick(lp.image, loop), nil
}

// Solve returns gain solving parameters of the loop. The last loop, only imaging, has none.
func (lp *LoopParams) Solve(loop int) (map[string]pipeline.Value, error) {
	if loop < 0 || lp.NLoops <= loop {
		return nil, fmt.Errorf("%w: %d (nloops = %d)", ErrLoopOutOfRange, loop, lp.NLoops)
	}
	return pick(lp.solve, loop), nil
}

func pick(m map[string][]pipeline.Value, loop int) map[string]pipeline.Value {
	ret := map[string]pipeline.Value{}
	for k, vs := range m {
		ret[k] = vs[loop]
	}
	return ret
}

// Nterms returns the number of taylor terms of the loop, 1 when not configured.
func (lp *LoopParams) Nterms(loop int) int {
	vs, ok := lp.image["nterms"]
	if !ok || loop < 0 || len(vs) <= loop {
		return 1
	}
	n, ok := vs[loop].AsInt()
	if !ok || n < 1 {
		return 1
	}
	return int(n)
}

// Threshold is a cleaning threshold.
//
// It is an absolute flux density like "0.5mJy", or a multiple of the rms noise
// measured in the previous loop.
type Threshold struct {
	Absolute string
	Sigma    float64
}

func (t Threshold) IsRelative() bool {
	return t.Absolute == ""
}

func (t Threshold) String() string {
	if t.IsRelative() {
		return strconv.FormatFloat(t.Sigma, 'g', -1, 64) + "sigma"
	}
	return t.Absolute
}

// ParseThreshold reads a threshold value of the config.
func ParseThreshold(v pipeline.Value) (Threshold, error) {
	if f, ok := v.AsFloat(); ok {
		if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return Threshold{}, fmt.Errorf("%w: %s", ErrInvalidThreshold, v.Literal())
		}
		return Threshold{Sigma: f}, nil
	}
	s, ok := v.AsString()
	if !ok {
		return Threshold{}, fmt.Errorf("%w: %s", ErrInvalidThreshold, v.Literal())
	}
	s = strings.TrimSpace(s)
	num := ""
	for _, unit := range []string{"uJy", "mJy", "Jy"} {
		if n, ok := strings.CutSuffix(s, unit); ok {
			num = strings.TrimSpace(n)
			break
		}
	}
	if f, err := strconv.ParseFloat(num, 64); err != nil || f < 0 {
		return Threshold{}, fmt.Errorf("%w: %q is not a flux density", ErrInvalidThreshold, s)
	}
	return Threshold{Absolute: s}, nil
}

// Resolve returns the threshold as a flux density for loop,
// reading the rms of the previous loop when t is relative.
func (t Threshold) Resolve(fsys fs.FS, vis string, loop int) (string, error) {
	if !t.IsRelative() {
		return t.Absolute, nil
	}
	if loop <= 0 {
		return "", fmt.Errorf("%w: threshold %s at the first loop", ErrNoRMS, t)
	}
	prev := SelfcalNames(vis, loop-1, 1)
	rms, err := ReadRMS(fsys, prev.RMS)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(t.Sigma*rms, 'g', 6, 64) + "Jy", nil
}

// ReadRMS reads an rms file, which has a number in Jy.
func ReadRMS(fsys fs.FS, name string) (float64, error) {
	buf, err := fs.ReadFile(fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s is not found", ErrNoRMS, name)
		}
		return 0, err
	}
	text := strings.TrimSpace(string(buf))
	if f := strings.Fields(text); 0 < len(f) {
		text = f[0]
	}
	rms, err := strconv.ParseFloat(text, 64)
	if err != nil || rms <= 0 {
		return 0, fmt.Errorf("%w: %s has no valid rms: %q", ErrNoRMS, name, text)
	}
	return rms, nil
}
