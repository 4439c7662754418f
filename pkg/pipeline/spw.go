package pipeline

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidSPW = errors.New("invalid spectral window")
	ErrNoSPW      = errors.New("no spectral windows remain")
)

// FreqRange is a frequency range in MHz.
type FreqRange struct {
	Lo float64
	Hi float64
}

// Label is the range in the form of "<lo>~<hi>MHz". It is also the name of the directory for the SPW.
func (r FreqRange) Label() string {
	return formatMHz(r.Lo) + "~" + formatMHz(r.Hi) + "MHz"
}

func (r FreqRange) Within(o FreqRange) bool {
	return o.Lo <= r.Lo && r.Hi <= o.Hi
}

func formatMHz(f float64) string {
	return strconv.FormatFloat(math.Round(f*1000)/1000, 'f', -1, 64)
}

// SPW is a spectral window processed in its own directory.
type SPW struct {
	// selection of spw and channels, like "*:880~960MHz"
	Selection string

	Range FreqRange
}

func (s SPW) Label() string {
	return s.Range.Label()
}

// ParseFreqRange reads "880~1680MHz". GHz is also accepted. A range without unit is in MHz.
func ParseFreqRange(s string) (FreqRange, error) {
	text := strings.TrimSpace(s)
	scale := 1.0
	switch {
	case strings.HasSuffix(text, "GHz"):
		text, scale = strings.TrimSuffix(text, "GHz"), 1000
	case strings.HasSuffix(text, "MHz"):
		text = strings.TrimSuffix(text, "MHz")
	}
	lo, hi, ok := strings.Cut(text, "~")
	if !ok {
		return FreqRange{}, fmt.Errorf("%w: %q is not a range", ErrInvalidSPW, s)
	}
	l, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return FreqRange{}, fmt.Errorf("%w: %q: lower bound", ErrInvalidSPW, s)
	}
	h, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return FreqRange{}, fmt.Errorf("%w: %q: upper bound", ErrInvalidSPW, s)
	}
	if h <= l {
		return FreqRange{}, fmt.Errorf("%w: %q is empty", ErrInvalidSPW, s)
	}
	return FreqRange{Lo: l * scale, Hi: h * scale}, nil
}

// ParseSPW reads a selection like "*:880~1680MHz" or "0:880~1680MHz".
func ParseSPW(s string) (SPW, error) {
	prefix, rng, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		prefix, rng = "*", s
	}
	r, err := ParseFreqRange(rng)
	if err != nil {
		return SPW{}, err
	}
	return SPW{Selection: prefix + ":" + r.Label(), Range: r}, nil
}

// SplitSPW divides the band into spectral windows.
//
// spw is a single selection split into nspw equal parts, or a list of selections
// separated by commas used as they are.
// Windows lying entirely in one of bad are dropped.
func SplitSPW(spw string, nspw int, bad []FreqRange) ([]SPW, error) {
	candidates := []SPW{}
	if strings.Contains(spw, ",") {
		for _, s := range strings.Split(spw, ",") {
			if strings.TrimSpace(s) == "" {
				continue
			}
			w, err := ParseSPW(s)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, w)
		}
	} else {
		if nspw < 1 {
			return nil, fmt.Errorf("%w: nspw = %d", ErrInvalidSPW, nspw)
		}
		whole, err := ParseSPW(spw)
		if err != nil {
			return nil, err
		}
		prefix, _, _ := strings.Cut(whole.Selection, ":")
		width := (whole.Range.Hi - whole.Range.Lo) / float64(nspw)
		for i := 0; i < nspw; i++ {
			r := FreqRange{Lo: whole.Range.Lo + width*float64(i), Hi: whole.Range.Lo + width*float64(i+1)}
			if i == nspw-1 {
				r.Hi = whole.Range.Hi
			}
			candidates = append(candidates, SPW{Selection: prefix + ":" + r.Label(), Range: r})
		}
	}

	ret := []SPW{}
	for _, c := range candidates {
		dropped := false
		for _, b := range bad {
			if c.Range.Within(b) {
				dropped = true
				break
			}
		}
		if !dropped {
			ret = append(ret, c)
		}
	}
	if len(ret) == 0 {
		return nil, fmt.Errorf("%w: all of %s are in bad frequency ranges", ErrNoSPW, spw)
	}
	return ret, nil
}
