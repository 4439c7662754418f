package pipeline

import (
	"context"
	"path/filepath"

	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
)

// sharedKeys are keys which jobs on the whole band write for jobs on spectral windows.
//
// Nil keys means every key of the section.
var sharedKeys = []struct {
	section string
	keys    []string
}{
	{section: pconfig.SectionData, keys: []string{"vis"}},
	{section: pconfig.SectionFields},
	{section: pconfig.SectionCrosscal, keys: []string{"refant", "calcrefant", "badants"}},
}

// pathKeys are keys having a path relative to the build directory.
var pathKeys = []struct{ section, key string }{
	{pconfig.SectionData, "vis"},
	{pconfig.SectionRun, "scriptdir"},
}

// RebasePaths makes relative paths in cfg absolute, taking them from dir.
func RebasePaths(cfg *pconfig.Config, dir string) error {
	for _, pk := range pathKeys {
		if !cfg.Has(pk.section, pk.key) {
			continue
		}
		p, err := cfg.String(pk.section, pk.key)
		if err != nil {
			return err
		}
		if p == "" || filepath.IsAbs(p) {
			continue
		}
		cfg.Set(pk.section, pk.key, pconfig.String(filepath.Join(dir, p)))
	}
	return nil
}

// SyncSPWConfig copies state written by jobs on the whole band from parent into spwcfg:
// the measurement set, fields and the reference antenna.
//
// dir is the build directory, where relative paths in parent are taken from.
func SyncSPWConfig(spwcfg, parent *pconfig.Config, dir string) error {
	for _, sk := range sharedKeys {
		keys := sk.keys
		if keys == nil {
			keys = parent.Keys(sk.section)
		}
		for _, key := range keys {
			if !parent.Has(sk.section, key) {
				continue
			}
			v, err := parent.Get(sk.section, key)
			if err != nil {
				return err
			}
			spwcfg.Set(sk.section, key, v)
		}
	}
	return RebasePaths(spwcfg, dir)
}

// ResetLoop sets the self-calibration loop of the config at cfgpath back to 0.
func ResetLoop(ctx context.Context, cfgpath string) error {
	return pconfig.Update(ctx, cfgpath, func(c *pconfig.Config) error {
		if c.HasSection(pconfig.SectionSelfcal) {
			c.Set(pconfig.SectionSelfcal, "loop", pconfig.Int(0))
		}
		return nil
	})
}
