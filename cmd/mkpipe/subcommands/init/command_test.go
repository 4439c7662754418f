package init_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	mkinit "github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/init"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/internal/commandline"
	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/logger"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/utils/try"
)

const store = `
ilifu:
  account: b24-thunderkat-ag
  partition: Jupyter
  container: /idia/software/containers/casa-6.5.simg
  scriptDir: /idia/software/pipelines/mkpipe/scripts
`

func TestTask(t *testing.T) {
	type when struct {
		flags    mkinit.Flags
		profile  string
		existing bool
	}
	type then struct {
		err    error
		expect map[string]string // "section.key" -> literal
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			dir := t.TempDir()
			storePath := filepath.Join(dir, "profile")
			if err := os.WriteFile(storePath, []byte(store), 0600); err != nil {
				t.Fatal(err)
			}
			cfgpath := filepath.Join(dir, "work", pconfig.DefaultFilename)
			if when.existing {
				if err := os.MkdirAll(filepath.Dir(cfgpath), 0755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(cfgpath, []byte("[data]\nvis = 'old.ms'\n"), 0644); err != nil {
					t.Fatal(err)
				}
			}

			stdout := new(strings.Builder)
			err := mkinit.Task(
				context.Background(),
				logger.Null(),
				common.CommonFlags{Config: cfgpath, Profile: when.profile, ProfileStore: storePath},
				commandline.MockCommandline[mkinit.Flags]{
					Fullname_: "mkpipe init",
					Stdout_:   stdout,
					Stderr_:   new(strings.Builder),
					Flags_:    when.flags,
				},
				[]any{},
			)
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := strings.TrimSpace(stdout.String()); got != cfgpath {
				t.Errorf("stdout = %q", got)
			}

			cfg := try.To(pconfig.Load(cfgpath)).OrFatal(t)
			for key, want := range then.expect {
				section, k, err := pconfig.SplitKey(key)
				if err != nil {
					t.Fatal(err)
				}
				got := try.To(cfg.Get(section, k)).OrFatal(t)
				if got.Literal() != want {
					t.Errorf("%s = %s, want %s", key, got.Literal(), want)
				}
			}
		}
	}

	t.Run("it writes defaults", theory(
		when{},
		then{expect: map[string]string{
			"data.vis":        "''",
			"crosscal.nspw":   "11",
			"slurm.partition": "'Main'",
		}},
	))

	t.Run("it writes vis and the profile", theory(
		when{flags: mkinit.Flags{Vis: "1491291289.ms"}, profile: "ilifu"},
		then{expect: map[string]string{
			"data.vis":        "'1491291289.ms'",
			"slurm.account":   "'b24-thunderkat-ag'",
			"slurm.partition": "'Jupyter'",
			"slurm.container": "'/idia/software/containers/casa-6.5.simg'",
			"run.scriptdir":   "'/idia/software/pipelines/mkpipe/scripts'",
		}},
	))

	t.Run("it does not overwrite the config without --force", theory(
		when{existing: true},
		then{err: mkinit.ErrConfigExists},
	))

	t.Run("it overwrites the config with --force", theory(
		when{existing: true, flags: mkinit.Flags{Force: true}},
		then{expect: map[string]string{"data.vis": "''"}},
	))
}
