// Package testenv makes a pipeline directory for tests of commands.
package testenv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/internal/slurmmock"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/utils/try"
)

const Vis = "1491291289.ms"

// New makes a directory with a measurement set, pipeline scripts and a valid config,
// and returns an Env on it.
//
// The config has one spectral window unless modify changes it.
// modify is applied before the config is saved.
func New(t *testing.T, modify func(*pconfig.Config)) (common.Env, *slurmmock.Mock) {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, Vis), 0755); err != nil {
		t.Fatal(err)
	}
	scriptdir := filepath.Join(dir, "scripts")
	if err := os.MkdirAll(scriptdir, 0755); err != nil {
		t.Fatal(err)
	}

	cfg := pconfig.Default()
	cfg.Set(pconfig.SectionData, "vis", pconfig.String(Vis))
	cfg.Set(pconfig.SectionFields, "bpassfield", pconfig.String("J1939-6342"))
	cfg.Set(pconfig.SectionFields, "fluxfield", pconfig.String("J1939-6342"))
	cfg.Set(pconfig.SectionFields, "phasecalfield", pconfig.String("J1830-3602"))
	cfg.Set(pconfig.SectionFields, "targetfields", pconfig.String("DEEP2"))
	cfg.Set(pconfig.SectionCrosscal, "nspw", pconfig.Int(1))
	cfg.Set(pconfig.SectionRun, "scriptdir", pconfig.String(scriptdir))
	if modify != nil {
		modify(cfg)
	}

	for _, key := range []string{"precal_scripts", "scripts", "postcal_scripts"} {
		if !cfg.Has(pconfig.SectionSlurm, key) {
			continue
		}
		for _, s := range try.To(cfg.Scripts(pconfig.SectionSlurm, key)).OrFatal(t) {
			if err := os.WriteFile(filepath.Join(scriptdir, s.Script), []byte{}, 0644); err != nil {
				t.Fatal(err)
			}
		}
	}

	cfgpath := filepath.Join(dir, pconfig.DefaultFilename)
	if err := cfg.Save(cfgpath); err != nil {
		t.Fatal(err)
	}

	mock := slurmmock.New(t)
	return common.Env{
		ConfigPath: cfgpath,
		Config:     try.To(pconfig.Load(cfgpath)).OrFatal(t),
		Slurm:      mock,
	}, mock
}

// Reload reads the config of env again.
func Reload(t *testing.T, env common.Env) *pconfig.Config {
	t.Helper()
	return try.To(pconfig.Load(env.ConfigPath)).OrFatal(t)
}
