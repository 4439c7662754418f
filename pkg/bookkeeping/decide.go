package bookkeeping

import (
	"errors"
	"io/fs"
)

// Decision tells which parts of a loop can be skipped because their products exist.
type Decision struct {
	SkipImaging bool `json:"skipImaging"`
	SkipSolve   bool `json:"skipSolve"`
	ReuseMask   bool `json:"reuseMask"`
}

// Decide looks for products of the loop in fsys.
//
// Paths are relative to the root of fsys, which should be the working directory of jobs.
func Decide(fsys fs.FS, names LoopNames) (Decision, error) {
	image, err := exists(fsys, names.Image)
	if err != nil {
		return Decision{}, err
	}
	cal, err := exists(fsys, names.Caltable)
	if err != nil {
		return Decision{}, err
	}
	mask, err := exists(fsys, names.Mask)
	if err != nil {
		return Decision{}, err
	}
	return Decision{SkipImaging: image, SkipSolve: cal, ReuseMask: mask}, nil
}

func exists(fsys fs.FS, name string) (bool, error) {
	_, err := fs.Stat(fsys, name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// LoopInventory is the state of products of a loop.
type LoopInventory struct {
	Names LoopNames `json:"names"`

	Image    bool `json:"image"`
	Mask     bool `json:"mask"`
	FITS     bool `json:"fits"`
	Caltable bool `json:"caltable"`

	// rms noise in Jy. Nil if unknown.
	RMS *float64 `json:"rms,omitempty"`
}

// Inventory lists products of every loop, 0 to nloops.
func Inventory(fsys fs.FS, vis string, lp *LoopParams) ([]LoopInventory, error) {
	ret := make([]LoopInventory, 0, lp.NLoops+1)
	for loop := 0; loop <= lp.NLoops; loop++ {
		names := SelfcalNames(vis, loop, lp.Nterms(loop))
		inv := LoopInventory{Names: names}
		for _, c := range []struct {
			name string
			dest *bool
		}{
			{names.Image, &inv.Image},
			{names.Mask, &inv.Mask},
			{names.FITS, &inv.FITS},
			{names.Caltable, &inv.Caltable},
		} {
			ok, err := exists(fsys, c.name)
			if err != nil {
				return nil, err
			}
			*c.dest = ok
		}
		if loop == lp.NLoops {
			// no solve in the last loop.
			inv.Caltable = false
		}
		if rms, err := ReadRMS(fsys, names.RMS); err == nil {
			inv.RMS = &rms
		} else if !errors.Is(err, ErrNoRMS) {
			return nil, err
		}
		ret = append(ret, inv)
	}
	return ret, nil
}
