package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meerkat-pipeline/mkpipe/pkg/bookkeeping"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/configs/site"
)

var ErrInvalidConfig = errors.New("pipeline config is invalid")

// Validate checks the config before jobs are planned.
//
// It reports every problem found, joined into one error wrapping ErrInvalidConfig.
// Relative paths are taken from the directory of opts.ConfigPath.
func Validate(cfg *pconfig.Config, opts Options) error {
	v := &validator{cfg: cfg, profile: opts.Profile, dir: filepath.Dir(opts.ConfigPath)}

	v.vis()
	v.fields()
	v.crosscal()
	v.run()
	scripts := v.scripts()
	v.resources(scripts)
	v.selfcal(scripts)

	if len(v.problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w:\n%w", ErrInvalidConfig, errors.Join(v.problems...))
}

type validator struct {
	cfg      *pconfig.Config
	profile  *site.Profile
	dir      string
	problems []error
}

func (v *validator) report(err error) {
	if err != nil {
		v.problems = append(v.problems, err)
	}
}

func (v *validator) reportf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Errorf(format, args...))
}

func (v *validator) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(v.dir, p)
}

func (v *validator) vis() {
	vis, err := v.cfg.String(pconfig.SectionData, "vis")
	if err != nil {
		v.report(err)
		return
	}
	if vis == "" {
		v.reportf("[data] vis is empty")
		return
	}
	trimmed := strings.TrimRight(vis, "/")
	if !strings.HasSuffix(trimmed, ".ms") && !strings.HasSuffix(trimmed, ".mms") {
		v.reportf("[data] vis should be a measurement set (.ms or .mms): %s", vis)
	}
	if _, err := os.Stat(v.path(vis)); err != nil {
		v.reportf("[data] vis is not accessible: %w", err)
	}
}

func (v *validator) fields() {
	for _, key := range []string{"bpassfield", "fluxfield", "phasecalfield", "targetfields"} {
		fields, err := bookkeeping.Fields(v.cfg, key)
		if err != nil {
			v.report(err)
			continue
		}
		if len(fields) == 0 {
			v.reportf("[fields] %s is empty", key)
		}
	}
}

func (v *validator) crosscal() {
	if _, err := planSPWs(v.cfg); err != nil {
		v.report(err)
	}
	if v.cfg.Has(pconfig.SectionCrosscal, "refant") {
		if _, err := v.cfg.String(pconfig.SectionCrosscal, "refant"); err != nil {
			v.report(err)
		}
	}
	if v.cfg.Has(pconfig.SectionCrosscal, "badants") {
		if _, err := v.cfg.Strings(pconfig.SectionCrosscal, "badants"); err != nil {
			v.report(err)
		}
	}
}

func (v *validator) run() {
	for _, key := range []string{"continue", "dopol"} {
		if v.cfg.Has(pconfig.SectionRun, key) {
			if _, err := v.cfg.Bool(pconfig.SectionRun, key); err != nil {
				v.report(err)
			}
		}
	}
}

func (v *validator) scripts() []pconfig.ScriptSpec {
	all := []pconfig.ScriptSpec{}
	for _, key := range []string{"precal_scripts", "scripts", "postcal_scripts"} {
		if !v.cfg.Has(pconfig.SectionSlurm, key) {
			continue
		}
		scripts, err := v.cfg.Scripts(pconfig.SectionSlurm, key)
		if err != nil {
			v.report(err)
			continue
		}
		all = append(all, scripts...)
	}
	if len(all) == 0 {
		v.report(ErrNoScripts)
	}

	for _, s := range all {
		path := ResolveScript(v.cfg, v.profile, s.Script)
		if _, err := os.Stat(v.path(path)); err != nil {
			v.reportf("script %s is not found: %w", s.Script, err)
		}
	}
	return all
}

func (v *validator) resources(scripts []pconfig.ScriptSpec) {
	hasMPI := false
	for _, s := range scripts {
		hasMPI = hasMPI || s.MPI
	}

	for _, mpi := range []bool{false, true} {
		if mpi && !hasMPI {
			continue
		}
		res, err := StepResources(v.cfg, mpi)
		if err != nil {
			v.report(err)
			return
		}
		if mpi && res.Tasks() <= 1 {
			v.reportf("MPI scripts need more than one task, but nodes x ntasks_per_node = %d", res.Tasks())
		}
		if v.profile != nil {
			v.report(v.profile.Check(res))
		}
	}
}

func (v *validator) selfcal(scripts []pconfig.ScriptSpec) {
	hasSelfcal := false
	for _, s := range scripts {
		name := bookkeeping.StepName(s.Script)
		hasSelfcal = hasSelfcal || name == SelfcalPart1 || name == SelfcalPart2
	}
	if !hasSelfcal {
		return
	}
	if _, err := bookkeeping.ReadLoopState(v.cfg); err != nil {
		v.report(err)
		return
	}
	lp, err := bookkeeping.ReadLoopParams(v.cfg)
	if err != nil {
		v.report(err)
		return
	}
	for loop := 0; loop <= lp.NLoops; loop++ {
		image, err := lp.Image(loop)
		if err != nil {
			v.report(err)
			return
		}
		th, ok := image["threshold"]
		if !ok {
			continue
		}
		t, err := bookkeeping.ParseThreshold(th)
		if err != nil {
			v.report(fmt.Errorf("loop %d: %w", loop, err))
			continue
		}
		if loop == 0 && t.IsRelative() {
			v.report(fmt.Errorf("loop 0: %w: threshold %s is relative", bookkeeping.ErrNoRMS, t))
		}
	}
}
