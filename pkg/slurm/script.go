package slurm

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"k8s.io/apimachinery/pkg/api/resource"
)

// Script is a batch script to be submitted with sbatch.
type Script struct {
	JobName   string
	Resources Resources

	// job array specification, like "0-9". Empty for a non-array job.
	Array string

	// paths of stdout/stderr. They can contain sbatch filename patterns (%j, %x, ...).
	Output string
	Error  string

	// working directory of the job.
	WorkDir string

	Modules []string

	// environment variables, exported in this order.
	Env []EnvVar

	// commands run before Commands. A failure of them stops the job silently.
	Preamble []string

	// main commands. When one fails, OnFailure runs and the job exits with 1.
	Commands []string

	OnFailure []string

	// commands run after all Commands succeeded.
	Epilogue []string
}

type EnvVar struct {
	Name  string
	Value string
}

var scriptTemplate = template.Must(
	template.New("sbatch").Funcs(template.FuncMap{
		"mem":    FormatMemory,
		"hasmem": func(q resource.Quantity) bool { return !q.IsZero() },
		"time":   FormatTime,
		"quote":  ShellQuote,
	}).Parse(`#!/bin/bash
#SBATCH --job-name={{ .JobName }}
{{- with .Resources }}
#SBATCH --nodes={{ .Nodes }}
#SBATCH --ntasks-per-node={{ .NTasksPerNode }}
{{- if .CPUsPerTask }}
#SBATCH --cpus-per-task={{ .CPUsPerTask }}
{{- end }}
{{- if gt .Plane 0 }}
#SBATCH --distribution=plane={{ .Plane }}
{{- end }}
{{- if hasmem .Memory }}
#SBATCH --mem={{ mem .Memory }}
{{- end }}
{{- if .Time }}
#SBATCH --time={{ time .Time }}
{{- end }}
{{- if .Partition }}
#SBATCH --partition={{ .Partition }}
{{- end }}
{{- if .Account }}
#SBATCH --account={{ .Account }}
{{- end }}
{{- if .Reservation }}
#SBATCH --reservation={{ .Reservation }}
{{- end }}
{{- if .Exclude }}
#SBATCH --exclude={{ .Exclude }}
{{- end }}
{{- end }}
{{- if .Array }}
#SBATCH --array={{ .Array }}
{{- end }}
{{- if .Output }}
#SBATCH --output={{ .Output }}
{{- end }}
{{- if .Error }}
#SBATCH --error={{ .Error }}
{{- end }}
{{ range .Modules }}
module load {{ . }}
{{- end }}
{{- if .WorkDir }}
cd {{ quote .WorkDir }} || exit 1
{{- end }}
{{- range .Env }}
export {{ .Name }}={{ quote .Value }}
{{- end }}
{{ range .Preamble }}
{{ . }} || exit 1
{{- end }}
{{ range .Commands }}
if ! {{ . }}; then
{{- range $.OnFailure }}
	{{ . }}
{{- end }}
	exit 1
fi
{{- end }}
{{ range .Epilogue }}
{{ . }}
{{- end }}
`),
)

// Render writes the script.
func (s Script) Render(w io.Writer) error {
	if s.JobName == "" {
		return fmt.Errorf("job name is required")
	}
	return scriptTemplate.Execute(w, s)
}

// String renders the script into a string.
func (s Script) String() string {
	sb := new(strings.Builder)
	if err := s.Render(sb); err != nil {
		return fmt.Sprintf("# %s\n", err)
	}
	return sb.String()
}

// WriteFile renders the script into an executable file at path.
func (s Script) WriteFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0755)
	if err != nil {
		return err
	}
	if err := s.Render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ShellQuote quotes s for bash when it has characters with special meanings.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
		case strings.ContainsRune("-_./:=,+@%", r):
		default:
			safe = false
		}
		if !safe {
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// Command builds a shell command line from arguments, quoting them as needed.
func Command(args ...string) string {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		quoted = append(quoted, ShellQuote(a))
	}
	return strings.Join(quoted, " ")
}
