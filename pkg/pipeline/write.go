package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/meerkat-pipeline/mkpipe/pkg/bookkeeping"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/slurm"
	"golang.org/x/sync/errgroup"
)

// SubDirs returns directories of spectral windows, relative to the build directory.
func (b *Build) SubDirs() []string {
	ret := make([]string, 0, len(b.SPWs))
	for _, s := range b.SPWs {
		ret = append(ret, s.Label())
	}
	return ret
}

// Write puts files of the build into the build directory:
// batch scripts, configs of spectral windows, the submit script and log directories.
//
// Configs of spectral windows are written only when they do not exist,
// since jobs may have written their state there already.
func (b *Build) Write() error {
	dirs := []string{filepath.Join(b.Dir, JobScriptDir), filepath.Join(b.Dir, LogDir)}
	for _, d := range b.SubDirs() {
		dirs = append(dirs, filepath.Join(b.Dir, d, LogDir))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, os.FileMode(0755)); err != nil {
			return err
		}
	}

	eg := new(errgroup.Group)
	for label, cfg := range b.SPWConfigs {
		path := filepath.Join(b.Dir, label, filepath.Base(b.ConfigPath))
		eg.Go(func() error {
			if _, err := os.Stat(path); err == nil {
				return nil
			}
			return cfg.Save(path)
		})
	}
	for _, s := range b.Steps {
		eg.Go(func() error {
			return s.Sbatch.WriteFile(s.SbatchPath)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	f, err := os.OpenFile(
		filepath.Join(b.Dir, SubmitScript), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(0755),
	)
	if err != nil {
		return err
	}
	if err := b.WriteSubmitScript(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// submitFunctions are shell functions of the submit script.
//
// "submit VAR ARGS..." queues a job with "sbatch --parsable ARGS..." and stores its id into VAR.
// When sbatch fails or tells no id, jobs queued so far are cancelled and the script exits.
const submitFunctions = `SUBMITTED=()

abort() {
	echo "$1" >&2
	if [ ${#SUBMITTED[@]} -ne 0 ]; then
		echo "cancelling ${SUBMITTED[*]}" >&2
		scancel "${SUBMITTED[@]}" || true
	fi
	exit 1
}

submit() {
	local var=$1
	shift
	local out
	if ! out=$(sbatch --parsable "$@"); then
		abort "failed to submit: $*"
	fi
	out=${out%%;*}
	if [ -z "$out" ]; then
		abort "no job id is given for: $*"
	fi
	printf -v "$var" '%s' "$out"
	SUBMITTED+=("$out")
}
`

// WriteSubmitScript writes a shell script submitting jobs in order with dependencies.
//
// The script records job ids with "mkpipe jobs record", which also writes helper scripts.
// When a submission fails, it cancels jobs submitted so far and records nothing.
func (b *Build) WriteSubmitScript(w io.Writer) error {
	order, err := b.Graph.TopologicalOrder()
	if err != nil {
		return err
	}
	variable := map[string]string{}
	for i, id := range order {
		variable[string(id)] = fmt.Sprintf("JOB%d", i)
	}

	sb := new(strings.Builder)
	sb.WriteString("#!/bin/bash\n")
	sb.WriteString("set -euo pipefail\n")
	fmt.Fprintf(sb, "cd %s\n\n", slurm.ShellQuote(b.Dir))
	sb.WriteString(submitFunctions)
	sb.WriteString("\n")

	if b.Config.HasSection(pconfig.SectionSelfcal) {
		fmt.Fprintf(
			sb, "%s config set --config %s selfcal.loop 0\n\n",
			b.Executable, slurm.ShellQuote(b.ConfigPath),
		)
	}

	external := []string{}
	for _, id := range b.External {
		external = append(external, string(id))
	}

	vars := []string{}
	for _, id := range order {
		step, ok := b.Step(id)
		if !ok {
			return fmt.Errorf("step for %s is not found", id)
		}
		ups := b.Graph.Upstreams(id)
		deps := []string{}
		if len(ups) == 0 {
			deps = append(deps, external...)
		}
		for _, u := range ups {
			deps = append(deps, "$"+variable[string(u)])
		}

		depopt := ""
		if len(deps) != 0 {
			depopt = " --dependency=" + string(slurm.AfterOK) + ":" + strings.Join(deps, ":") +
				" --kill-on-invalid-dep=yes"
		}
		rel, err := filepath.Rel(b.Dir, step.SbatchPath)
		if err != nil {
			rel = step.SbatchPath
		}
		v := variable[string(id)]
		fmt.Fprintf(sb, "submit %s%s %s\n", v, depopt, slurm.ShellQuote(rel))
		fmt.Fprintf(sb, "echo \"%s: $%s\"\n", step.Name, v)
		vars = append(vars, "$"+v)
	}

	fmt.Fprintf(
		sb, "\n%s jobs record --config %s %s\n",
		b.Executable, slurm.ShellQuote(b.ConfigPath), strings.Join(vars, " "),
	)

	_, err = io.WriteString(w, sb.String())
	return err
}

// Helpers returns contents of helper scripts for the jobs.
func (b *Build) Helpers(ids []slurm.JobID) (HelperOptions, error) {
	intermediates, err := bookkeeping.Intermediates(b.Config, b.SubDirs())
	if err != nil {
		return HelperOptions{}, err
	}
	return HelperOptions{JobIDs: ids, SubDirs: b.SubDirs(), Intermediates: intermediates}, nil
}
