package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/slurm"
	"github.com/meerkat-pipeline/mkpipe/pkg/utils/try"
)

func toStrings(ids []slurm.JobID) []string {
	ret := make([]string, 0, len(ids))
	for _, id := range ids {
		ret = append(ret, string(id))
	}
	return ret
}

type fakeSubmitter struct {
	mu sync.Mutex

	next int

	// failing script name
	failOn string

	// by job name
	deps      map[string][]slurm.Dependency
	cancelled []slurm.JobID
}

func (f *fakeSubmitter) Submit(_ context.Context, path string, deps ...slurm.Dependency) (slurm.JobID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := strings.TrimSuffix(filepath.Base(path), ".sbatch")
	if name == f.failOn {
		return "", errors.New("sbatch: error: invalid partition")
	}
	f.next += 1
	f.deps[name] = deps
	return slurm.JobID(fmt.Sprintf("%d", 1000+f.next)), nil
}

func (f *fakeSubmitter) Cancel(_ context.Context, ids ...slurm.JobID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, ids...)
	return nil
}

func writeBuild(t *testing.T, nspw int) *pipeline.Build {
	t.Helper()
	dir := t.TempDir()
	cfgpath := filepath.Join(dir, pconfig.DefaultFilename)
	cfg := newConfig(nspw)
	cfg.Set(pconfig.SectionSlurm, "dependencies", pconfig.String("77"))
	if err := cfg.Save(cfgpath); err != nil {
		t.Fatal(err)
	}
	b := try.To(pipeline.Plan(cfg, pipeline.Options{ConfigPath: cfgpath})).OrFatal(t)
	if err := b.Write(); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestSubmit(t *testing.T) {
	t.Run("jobs are submitted with dependencies and recorded", func(t *testing.T) {
		b := writeBuild(t, 4)
		fake := &fakeSubmitter{deps: map[string][]slurm.Dependency{}}

		ids := try.To(pipeline.Submit(context.Background(), b, fake)).OrFatal(t)
		if len(ids) != len(b.Steps) {
			t.Fatalf("unexpected number of ids: %d", len(ids))
		}

		// the first job waits for the external one.
		if diff := cmp.Diff(
			[]slurm.Dependency{{Type: slurm.AfterOK, JobIDs: []slurm.JobID{"77"}}},
			fake.deps["calc_refant"],
		); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}

		partition, _ := b.Step("partition")
		first, _ := b.Step("880~1080MHz_validate_input")
		if diff := cmp.Diff(
			[]slurm.Dependency{{Type: slurm.AfterOK, JobIDs: []slurm.JobID{partition.JobID}}},
			fake.deps[first.Name],
		); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}

		concat := fake.deps["concat"]
		if len(concat) != 1 || len(concat[0].JobIDs) != 4 {
			t.Errorf("concat should wait for 4 jobs: %+v", concat)
		}

		saved := try.To(pconfig.Load(b.ConfigPath)).OrFatal(t)
		recorded := try.To(pipeline.RecordedJobs(saved)).OrFatal(t)
		if diff := cmp.Diff(ids, recorded); diff != "" {
			t.Errorf("recorded (-want +got):\n%s", diff)
		}

		for _, h := range []string{
			pipeline.KillScript, pipeline.SummaryScript, pipeline.ErrorsScript, pipeline.CleanupScript,
		} {
			if _, err := os.Stat(filepath.Join(b.Dir, h)); err != nil {
				t.Errorf("helper %s: %v", h, err)
			}
		}
		kill := try.To(os.ReadFile(filepath.Join(b.Dir, pipeline.KillScript))).OrFatal(t)
		if !strings.Contains(string(kill), "scancel "+strings.Join(toStrings(ids), " ")) {
			t.Errorf("unexpected kill script:\n%s", kill)
		}

		for _, s := range b.Steps {
			node, _ := b.Graph.Node(s.ID)
			if node.JobID != s.JobID || node.Status != slurm.StatePending {
				t.Errorf("graph is not updated: %+v", node)
			}
		}
	})

	t.Run("submitted jobs are cancelled on failure", func(t *testing.T) {
		b := writeBuild(t, 1)
		fake := &fakeSubmitter{deps: map[string][]slurm.Dependency{}, failOn: "setjy"}

		if _, err := pipeline.Submit(context.Background(), b, fake); err == nil {
			t.Fatal("expected error, but not")
		}
		// calc_refant, partition, validate_input and flag_round_1
		if len(fake.cancelled) != 4 {
			t.Errorf("unexpected cancelled jobs: %v", fake.cancelled)
		}
	})
}

func TestSubmit_resubmission(t *testing.T) {
	b := writeBuild(t, 1)

	// an earlier run stopped in its second loop.
	if err := pconfig.Update(context.Background(), b.ConfigPath, func(c *pconfig.Config) error {
		c.Set(pconfig.SectionSelfcal, "loop", pconfig.Int(1))
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	fake := &fakeSubmitter{deps: map[string][]slurm.Dependency{}}
	if _, err := pipeline.Submit(context.Background(), b, fake); err != nil {
		t.Fatal(err)
	}

	saved := try.To(pconfig.Load(b.ConfigPath)).OrFatal(t)
	if loop := try.To(saved.Int(pconfig.SectionSelfcal, "loop")).OrFatal(t); loop != 0 {
		t.Errorf("loop is not reset: %d", loop)
	}

	first, ok := b.Step("selfcal_part1_loop0")
	if !ok {
		t.Fatal("selfcal_part1_loop0 is not found")
	}
	want := "mkpipe config set --config " + slurm.ShellQuote(b.ConfigPath) + " selfcal.loop 0"
	sbatch := try.To(os.ReadFile(first.SbatchPath)).OrFatal(t)
	if !strings.Contains(string(sbatch), want+" || exit 1\n") {
		t.Errorf("loop is not pinned:\n%s", sbatch)
	}
}

func TestRecordedJobs(t *testing.T) {
	for literal, expected := range map[string][]string{
		"['1', '2']": {"1", "2"},
		"[3, 4]":     {"3", "4"},
		"5":          {"5"},
		"'6,7'":      {"6", "7"},
		"[]":         {},
	} {
		t.Run(literal, func(t *testing.T) {
			cfg := pconfig.New()
			cfg.Set(pconfig.SectionRun, "jobids", pconfig.MustParse(literal))
			actual := try.To(pipeline.RecordedJobs(cfg)).OrFatal(t)
			if diff := cmp.Diff(expected, toStrings(actual)); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}
