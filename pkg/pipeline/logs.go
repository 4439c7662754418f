package pipeline

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/meerkat-pipeline/mkpipe/pkg/slurm"
)

// patterns of lines reporting problems in logs of jobs
const (
	ErrorPattern  = `error|severe|traceback|exception|segmentation fault|oom-kill`
	BenignPattern = `errors="ignore"|MPIEnvironment|No error`
)

var (
	errorRe  = regexp.MustCompile(`(?i)(` + ErrorPattern + `)`)
	benignRe = regexp.MustCompile(`(?i)(` + BenignPattern + `)`)
)

// LogExtensions are extensions of log files of a job.
var LogExtensions = []string{".out", ".err", ".casa"}

// LogProblem is a line reporting a problem.
type LogProblem struct {
	JobID slurm.JobID `json:"jobId"`
	File  string      `json:"file"`
	Line  int         `json:"line"`
	Text  string      `json:"text"`
}

// IsProblem reports whether a log line tells a problem.
func IsProblem(line string) bool {
	return errorRe.MatchString(line) && !benignRe.MatchString(line)
}

// LogFiles returns log files of the job in logs directories under dirs.
func LogFiles(dirs []string, id slurm.JobID) ([]string, error) {
	ret := []string{}
	for _, d := range dirs {
		for _, ext := range LogExtensions {
			found, err := filepath.Glob(filepath.Join(d, LogDir, "*-"+string(id)+ext))
			if err != nil {
				return nil, err
			}
			ret = append(ret, found...)
		}
	}
	slices.Sort(ret)
	return ret, nil
}

// ScanLogs finds problems in logs of jobs.
func ScanLogs(dirs []string, ids []slurm.JobID) ([]LogProblem, error) {
	ret := []LogProblem{}
	for _, id := range ids {
		files, err := LogFiles(dirs, id)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			problems, err := scanFile(f, id)
			if err != nil {
				return nil, err
			}
			ret = append(ret, problems...)
		}
	}
	return ret, nil
}

func scanFile(path string, id slurm.JobID) ([]LogProblem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ret := []LogProblem{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n += 1
		line := sc.Text()
		if IsProblem(line) {
			ret = append(ret, LogProblem{JobID: id, File: path, Line: n, Text: strings.TrimSpace(line)})
		}
	}
	return ret, sc.Err()
}
