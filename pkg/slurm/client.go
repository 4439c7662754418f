package slurm

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/meerkat-pipeline/mkpipe/pkg/utils/retry"
	"k8s.io/apimachinery/pkg/api/resource"
)

var (
	ErrInvalidJobID = errors.New("invalid job id")
	ErrCommand      = errors.New("slurm command failed")
)

// Runner runs an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	// Env is added to the environment of child processes, in the form of "KEY=VALUE".
	Env []string
}

func (e ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(e.Env) != 0 {
		cmd.Env = append(cmd.Environ(), e.Env...)
	}
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf(
			"%w: %s %s: %w: %s",
			ErrCommand, name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()),
		)
	}
	return stdout.Bytes(), nil
}

// messages of the controller being busy or down. Commands failed with them have done nothing.
var transientMessages = []string{
	"Unable to contact slurm controller",
	"temporarily unable to accept job",
	"Resource temporarily unavailable",
}

// sbatch may have queued a job even when the reply is lost, so this is retried only for other commands.
const socketTimeout = "Socket timed out"

// RetryRunner runs a command again while the controller is unavailable.
type RetryRunner struct {
	Runner Runner

	// max number of runs of a command. Zero or less means no limit.
	Attempts int

	// makes a backoff for each command.
	Backoff func() retry.Backoff
}

func (r RetryRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return retry.Blocking(ctx, r.Attempts, r.Backoff(), func() ([]byte, error) {
		out, err := r.Runner.Run(ctx, name, args...)
		if err != nil && isTransient(name, err) {
			return out, fmt.Errorf("%w: %w", retry.ErrRetry, err)
		}
		return out, err
	})
}

func isTransient(name string, err error) bool {
	msg := err.Error()
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return name != "sbatch" && strings.Contains(msg, socketTimeout)
}

// Client talks with SLURM through its command line tools.
type Client struct {
	Runner Runner
}

// NewClient returns a Client running the real sbatch, scancel and sacct.
//
// Commands are retried up to 5 times while the controller is unavailable.
func NewClient() *Client {
	return &Client{
		Runner: RetryRunner{
			Runner:   ExecRunner{},
			Attempts: 5,
			Backoff: func() retry.Backoff {
				return retry.ExponentialBackoff(2*time.Second, 2)
			},
		},
	}
}

// Submit queues the batch script at path and returns the id of the new job.
//
// Jobs with dependencies are killed by SLURM when the dependencies can not be satisfied anymore.
func (c *Client) Submit(ctx context.Context, path string, deps ...Dependency) (JobID, error) {
	args := []string{"--parsable"}
	depexpr := make([]string, 0, len(deps))
	for _, d := range deps {
		if s := d.String(); s != "" {
			depexpr = append(depexpr, s)
		}
	}
	if len(depexpr) != 0 {
		args = append(args, "--dependency="+strings.Join(depexpr, ","), "--kill-on-invalid-dep=yes")
	}
	args = append(args, path)

	out, err := c.Runner.Run(ctx, "sbatch", args...)
	if err != nil {
		return "", err
	}
	return parseSubmitted(string(out))
}

// parseSubmitted reads the output of `sbatch --parsable`: "<jobid>[;<cluster>]".
func parseSubmitted(out string) (JobID, error) {
	line := strings.TrimSpace(out)
	// sbatch may print warnings before the id.
	if i := strings.LastIndexByte(line, '\n'); 0 <= i {
		line = strings.TrimSpace(line[i+1:])
	}
	id, _, _ := strings.Cut(line, ";")
	if !validJobID(id) {
		return "", fmt.Errorf("%w: sbatch says %q", ErrInvalidJobID, out)
	}
	return JobID(id), nil
}

// Cancel cancels jobs. It is noop when no ids are given.
func (c *Client) Cancel(ctx context.Context, ids ...JobID) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]string, 0, len(ids))
	for _, id := range ids {
		args = append(args, string(id))
	}
	_, err := c.Runner.Run(ctx, "scancel", args...)
	return err
}

// JobInfo is accounting information of a job.
type JobInfo struct {
	ID        JobID
	Name      string
	Partition string
	Elapsed   time.Duration
	Nodes     int
	Tasks     int
	CPUs      int

	// the largest resident set size among steps of the job. Zero if unknown.
	MaxRSS resource.Quantity

	State    State
	ExitCode string
}

var accountingFields = []string{
	"JobID", "JobName", "Partition", "Elapsed", "NNodes", "NTasks", "NCPUS", "MaxRSS", "State", "ExitCode",
}

// Accounting queries sacct for jobs. Results are in the order of ids.
//
// Steps of a job (".batch", ".extern", ".0" ...) are folded into the job.
func (c *Client) Accounting(ctx context.Context, ids ...JobID) ([]JobInfo, error) {
	if len(ids) == 0 {
		return []JobInfo{}, nil
	}
	jobs := make([]string, 0, len(ids))
	for _, id := range ids {
		jobs = append(jobs, string(id))
	}
	out, err := c.Runner.Run(
		ctx, "sacct",
		"--parsable2", "--noheader",
		"--format="+strings.Join(accountingFields, ","),
		"--jobs="+strings.Join(jobs, ","),
	)
	if err != nil {
		return nil, err
	}
	infos, err := parseAccounting(out)
	if err != nil {
		return nil, err
	}

	ret := make([]JobInfo, 0, len(ids))
	for _, id := range ids {
		if info, ok := infos[id]; ok {
			ret = append(ret, info)
		}
	}
	return ret, nil
}

func parseAccounting(out []byte) (map[JobID]JobInfo, error) {
	infos := map[JobID]JobInfo{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		cols := strings.Split(line, "|")
		if len(cols) != len(accountingFields) {
			return nil, fmt.Errorf("%w: unexpected sacct line: %q", ErrCommand, line)
		}
		id, _, isStep := strings.Cut(cols[0], ".")
		rss, err := parseRSS(cols[7])
		if err != nil {
			return nil, err
		}

		jid := JobID(id)
		info, seen := infos[jid]
		if isStep {
			if rss.Cmp(info.MaxRSS) > 0 {
				info.MaxRSS = rss
			}
			if !seen {
				info.ID = jid
			}
			infos[jid] = info
			continue
		}

		elapsed, err := ParseTime(cols[3])
		if err != nil {
			elapsed = 0
		}
		info.ID = jid
		info.Name = cols[1]
		info.Partition = cols[2]
		info.Elapsed = elapsed
		info.Nodes = atoiOrZero(cols[4])
		info.Tasks = atoiOrZero(cols[5])
		info.CPUs = atoiOrZero(cols[6])
		if rss.Cmp(info.MaxRSS) > 0 {
			info.MaxRSS = rss
		}
		info.State = NormalizeState(cols[8])
		info.ExitCode = cols[9]
		infos[jid] = info
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return infos, nil
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// parseRSS reads MaxRSS of sacct, like "1234K" or "2.50G". Units are binary.
func parseRSS(s string) (resource.Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return resource.Quantity{}, nil
	}
	suffix := ""
	switch s[len(s)-1] {
	case 'K', 'M', 'G', 'T', 'P':
		suffix = s[len(s)-1:] + "i"
		s = s[:len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return resource.Quantity{}, fmt.Errorf("%w: unexpected MaxRSS: %q", ErrCommand, s+suffix)
	}
	if suffix == "" {
		return *resource.NewQuantity(int64(f), resource.BinarySI), nil
	}
	// "2.50Gi" is not canonical but parsable.
	q, err := resource.ParseQuantity(strconv.FormatFloat(f, 'f', -1, 64) + suffix)
	if err != nil {
		return resource.Quantity{}, fmt.Errorf("%w: unexpected MaxRSS: %q", ErrCommand, s+suffix)
	}
	return q, nil
}
