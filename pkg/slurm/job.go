package slurm

import (
	"fmt"
	"strings"
)

// JobID is an id of a SLURM job, like "123456".
type JobID string

type DependencyType string

const (
	AfterOK    DependencyType = "afterok"
	AfterAny   DependencyType = "afterany"
	AfterNotOK DependencyType = "afternotok"
)

// Dependency is a condition to start a job.
type Dependency struct {
	Type   DependencyType
	JobIDs []JobID
}

// String renders the dependency for sbatch, like "afterok:1:2".
//
// It returns "" when no jobs are depended on.
func (d Dependency) String() string {
	if len(d.JobIDs) == 0 {
		return ""
	}
	typ := d.Type
	if typ == "" {
		typ = AfterOK
	}
	sb := new(strings.Builder)
	sb.WriteString(string(typ))
	for _, id := range d.JobIDs {
		sb.WriteByte(':')
		sb.WriteString(string(id))
	}
	return sb.String()
}

// ParseJobIDs reads job ids separated by commas, colons or spaces.
//
// Each id should be numeric, optionally with an array index ("123_4").
func ParseJobIDs(s string) ([]JobID, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ':' || r == ' ' || r == '\t' || r == '\n'
	})
	ids := make([]JobID, 0, len(fields))
	for _, f := range fields {
		if !validJobID(f) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidJobID, f)
		}
		ids = append(ids, JobID(f))
	}
	return ids, nil
}

func validJobID(s string) bool {
	main, idx, hasIdx := strings.Cut(s, "_")
	if !isDigits(main) {
		return false
	}
	return !hasIdx || isDigits(idx)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || '9' < r {
			return false
		}
	}
	return true
}

// State is a job state reported by sacct.
type State string

const (
	StatePending     State = "PENDING"
	StateRunning     State = "RUNNING"
	StateCompleting  State = "COMPLETING"
	StateCompleted   State = "COMPLETED"
	StateFailed      State = "FAILED"
	StateCancelled   State = "CANCELLED"
	StateTimeout     State = "TIMEOUT"
	StateOutOfMemory State = "OUT_OF_MEMORY"
	StateNodeFail    State = "NODE_FAIL"
	StatePreempted   State = "PREEMPTED"
	StateBootFail    State = "BOOT_FAIL"
	StateDeadline    State = "DEADLINE"
	StateSuspended   State = "SUSPENDED"
	StateRequeued    State = "REQUEUED"
)

// NormalizeState reads a state as sacct prints it.
//
// Trailing notes are dropped: "CANCELLED by 1234" and "CANCELLED+" are CANCELLED.
func NormalizeState(s string) State {
	s = strings.TrimSpace(s)
	if f, _, ok := strings.Cut(s, " "); ok {
		s = f
	}
	s = strings.TrimRight(s, "+")
	return State(strings.ToUpper(s))
}

// IsTerminal reports whether the job will not change its state anymore.
func (s State) IsTerminal() bool {
	switch s {
	case StatePending, StateRunning, StateCompleting, StateSuspended, StateRequeued, "":
		return false
	}
	return true
}

// IsSuccess reports whether the job has completed successfully.
func (s State) IsSuccess() bool {
	return s == StateCompleted
}
