package bookkeeping

import (
	"path"

	"github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
)

// Intermediates returns products which are not needed after the pipeline finishes.
//
// Names are relative to the build directory. Those with "*" are glob patterns.
// subdirs are directories of spectral windows.
func Intermediates(cfg *pipeline.Config, subdirs []string) ([]string, error) {
	vis, err := cfg.String(pipeline.SectionData, "vis")
	if err != nil {
		return nil, err
	}
	if vis == "" {
		return nil, ErrNoVis
	}
	base := Basename(vis)

	keepmms, err := boolOr(cfg, pipeline.SectionCrosscal, "keepmms", true)
	if err != nil {
		return nil, err
	}

	dirs := append([]string{"."}, subdirs...)
	ret := []string{}
	for _, d := range dirs {
		if !keepmms {
			ret = append(ret, path.Join(d, base+".mms"))
		}
		ret = append(ret, path.Join(d, "*.last"))
	}

	st, err := ReadLoopState(cfg)
	if err != nil {
		return ret, nil
	}
	lp, err := ReadLoopParams(cfg)
	if err != nil {
		return nil, err
	}
	for loop := 0; loop <= st.NLoops; loop++ {
		names := SelfcalNames(vis, loop, lp.Nterms(loop))
		ret = append(ret, names.Mask, names.PixelMask)
	}
	return ret, nil
}
