package bookkeeping

import (
	"fmt"
	"strconv"
)

// LoopNames are names of products of a self-calibration loop.
type LoopNames struct {
	Loop int `json:"loop"`

	// prefix of the image products, "<base>_im_<loop>"
	ImageBase string `json:"imageBase"`

	// restored image. The first taylor term for nterms > 1.
	Image string `json:"image"`

	FITS      string `json:"fits"`
	Mask      string `json:"mask"`
	PixelMask string `json:"pixelMask"`

	// file having the rms noise of the residual image, in Jy
	RMS string `json:"rms"`

	// gain table solved in this loop.
	Caltable string `json:"caltable"`

	base string
}

// SelfcalNames returns names used in a loop.
func SelfcalNames(vis string, loop int, nterms int) LoopNames {
	base := Basename(vis)
	imbase := fmt.Sprintf("%s_im_%d", base, loop)
	image := imbase + ".image"
	if 1 < nterms {
		image += ".tt0"
	}
	return LoopNames{
		Loop:      loop,
		ImageBase: imbase,
		Image:     image,
		FITS:      image + ".fits",
		Mask:      imbase + ".islmask",
		PixelMask: imbase + ".pixmask",
		RMS:       imbase + ".rms",
		Caltable:  caltable(base, loop),
		base:      base,
	}
}

func caltable(base string, loop int) string {
	return base + ".gcal" + strconv.Itoa(loop)
}

// PreviousCaltables returns gain tables of earlier loops to be applied before this loop's solve.
//
// Tables of the first discard loops are not used.
func (n LoopNames) PreviousCaltables(discard int) []string {
	ret := []string{}
	for l := max(discard, 0); l < n.Loop; l++ {
		ret = append(ret, caltable(n.base, l))
	}
	return ret
}
