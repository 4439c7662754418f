package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meerkat-pipeline/mkpipe/pkg/slurm"
)

// names of helper scripts written next to the config
const (
	KillScript    = "killJobs.sh"
	SummaryScript = "summary.sh"
	ErrorsScript  = "findErrors.sh"
	CleanupScript = "cleanup.sh"
)

// HelperOptions are contents of helper scripts.
type HelperOptions struct {
	JobIDs []slurm.JobID

	// directories of spectral windows, relative to the build directory
	SubDirs []string

	// paths to be removed by the cleanup script. Paths with "*" are globs.
	Intermediates []string
}

// helperHeader starts every helper script. Paths in helpers are relative to the build directory.
const helperHeader = "#!/bin/bash\n" + `cd "$(dirname "$0")" || exit 1` + "\n"

// WriteHelpers writes scripts to kill jobs, summarize them, find errors in their logs
// and remove intermediate products, into dir.
func WriteHelpers(dir string, o HelperOptions) error {
	ids := make([]string, 0, len(o.JobIDs))
	for _, id := range o.JobIDs {
		ids = append(ids, string(id))
	}

	logdirs := []string{filepath.Join(".", LogDir)}
	for _, d := range o.SubDirs {
		logdirs = append(logdirs, filepath.Join(d, LogDir))
	}
	quotedLogdirs := make([]string, 0, len(logdirs))
	for _, d := range logdirs {
		quotedLogdirs = append(quotedLogdirs, slurm.ShellQuote(d))
	}

	removing := make([]string, 0, len(o.Intermediates))
	for _, p := range o.Intermediates {
		if strings.Contains(p, "*") {
			// keep globs expanded by the shell
			removing = append(removing, p)
		} else {
			removing = append(removing, slurm.ShellQuote(p))
		}
	}

	scripts := map[string]string{
		KillScript: helperHeader + "scancel " + strings.Join(ids, " ") + "\n",
		SummaryScript: helperHeader + fmt.Sprintf(
			"sacct --jobs=%s --units=G --format=JobID,JobName%%40,Partition,Elapsed,NNodes,NTasks,NCPUS,MaxRSS,State,ExitCode\n",
			strings.Join(ids, ","),
		),
		ErrorsScript: helperHeader + fmt.Sprintf(
			`for id in %s; do
	for d in %s; do
		for f in "$d"/*-"$id".out "$d"/*-"$id".err "$d"/*-"$id".casa; do
			[ -f "$f" ] || continue
			grep -H -n -i -E %s "$f" | grep -v -i -E %s
		done
	done
done
`,
			strings.Join(ids, " "),
			strings.Join(quotedLogdirs, " "),
			slurm.ShellQuote(ErrorPattern),
			slurm.ShellQuote(BenignPattern),
		),
		CleanupScript: helperHeader + "rm -rf " + strings.Join(removing, " ") + "\n",
	}
	if len(ids) == 0 {
		scripts[KillScript] = helperHeader + "echo 'no jobs'\n"
	}
	if len(removing) == 0 {
		scripts[CleanupScript] = helperHeader
	}

	for name, content := range scripts {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0755); err != nil {
			return err
		}
	}
	return nil
}
