package pipeline_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/utils/try"
)

func TestConfig_Scripts(t *testing.T) {
	t.Run("default precal scripts", func(t *testing.T) {
		actual := try.To(pipeline.Default().Scripts(pipeline.SectionSlurm, "precal_scripts")).OrFatal(t)
		expected := []pipeline.ScriptSpec{
			{Script: "calc_refant.py"},
			{Script: "partition.py", MPI: true},
		}
		if diff := cmp.Diff(expected, actual); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("mixed forms", func(t *testing.T) {
		cfg := pipeline.New()
		cfg.Set(pipeline.SectionSlurm, "scripts", pipeline.MustParse(
			`['concat.py', ('selfcal_part1.py', True, '/containers/casa.sif'), ['plot.py', False], ('x.py', True, None)]`,
		))
		actual := try.To(cfg.Scripts(pipeline.SectionSlurm, "scripts")).OrFatal(t)
		expected := []pipeline.ScriptSpec{
			{Script: "concat.py"},
			{Script: "selfcal_part1.py", MPI: true, Container: "/containers/casa.sif"},
			{Script: "plot.py"},
			{Script: "x.py", MPI: true},
		}
		if diff := cmp.Diff(expected, actual); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		cfg := pipeline.New()
		scripts := []pipeline.ScriptSpec{
			{Script: "a.py", MPI: true, Container: "c.sif"},
			{Script: "b.py"},
		}
		cfg.SetScripts(pipeline.SectionSlurm, "scripts", scripts)
		actual := try.To(cfg.Scripts(pipeline.SectionSlurm, "scripts")).OrFatal(t)
		if diff := cmp.Diff(scripts, actual); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	for name, literal := range map[string]string{
		"not a list":        `True`,
		"mpi is not a bool": `[('a.py', 'yes', '')]`,
		"too many elements": `[('a.py', True, '', 1)]`,
	} {
		t.Run(name, func(t *testing.T) {
			cfg := pipeline.New()
			cfg.Set(pipeline.SectionSlurm, "scripts", pipeline.MustParse(literal))
			if _, err := cfg.Scripts(pipeline.SectionSlurm, "scripts"); !errors.Is(err, pipeline.ErrTypeMismatch) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
