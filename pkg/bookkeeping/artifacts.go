// Package bookkeeping names the products of pipeline steps
// and tells which of them are already on the disk.
//
// Jobs never pass data to each other directly. A job finds products of earlier
// jobs by their names, derived from the measurement set and the loop counter.
package bookkeeping

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
)

var ErrNoVis = errors.New("measurement set is not configured")

// Basename returns the name of a measurement set without directories and the extension.
//
//	Basename("/data/1491291289.ms") == "1491291289"
func Basename(vis string) string {
	base := filepath.Base(strings.TrimRight(vis, "/"))
	for _, ext := range []string{".mms", ".ms"} {
		if b, ok := strings.CutSuffix(base, ext); ok && b != "" {
			return b
		}
	}
	return base
}

// StepName returns the name of a step from its script, like "xx_yy_solve" for "/path/xx_yy_solve.py".
func StepName(script string) string {
	return strings.TrimSuffix(path.Base(script), ".py")
}

// Fields returns names of fields listed in the config value, which may be a list
// or a string separated by commas.
func Fields(cfg *pipeline.Config, key string) ([]string, error) {
	values, err := cfg.Strings(pipeline.SectionFields, key)
	if err != nil {
		return nil, err
	}
	ret := []string{}
	for _, v := range values {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				ret = append(ret, f)
			}
		}
	}
	return ret, nil
}

// StepArtifacts returns names of files and directories the step makes.
//
// Steps making nothing worth tracking (flagging, applying calibration, ...) give an empty list.
// Self-calibration products are per loop; see SelfcalNames.
func StepArtifacts(step string, cfg *pipeline.Config) ([]string, error) {
	vis, err := cfg.String(pipeline.SectionData, "vis")
	if err != nil {
		return nil, err
	}
	if vis == "" {
		return nil, ErrNoVis
	}
	base := Basename(vis)

	switch name := StepName(step); {
	case name == "partition":
		return []string{base + ".mms"}, nil

	case strings.HasSuffix(name, "_solve") || name == "solve":
		ret := []string{base + ".kcal", base + ".bcal", base + ".gcal", base + ".fluxscale"}
		dopol, err := boolOr(cfg, pipeline.SectionRun, "dopol", false)
		if err != nil {
			return nil, err
		}
		if dopol {
			ret = append(ret, base+".xcal", base+".xdel", base+".xyambcal")
		}
		return ret, nil

	case name == "split":
		targets, err := Fields(cfg, "targetfields")
		if err != nil {
			return nil, err
		}
		ret := make([]string, 0, len(targets))
		for _, t := range targets {
			ret = append(ret, fmt.Sprintf("%s.%s.mms", base, t))
		}
		return ret, nil

	case name == "quick_tclean":
		targets, err := Fields(cfg, "targetfields")
		if err != nil {
			return nil, err
		}
		ret := make([]string, 0, len(targets))
		for _, t := range targets {
			ret = append(ret, path.Join("images", fmt.Sprintf("%s.%s_im", base, t)))
		}
		return ret, nil

	case name == "science_image":
		return []string{base + "_science"}, nil
	}
	return []string{}, nil
}

func boolOr(cfg *pipeline.Config, section, key string, def bool) (bool, error) {
	if !cfg.Has(section, key) {
		return def, nil
	}
	return cfg.Bool(section, key)
}
