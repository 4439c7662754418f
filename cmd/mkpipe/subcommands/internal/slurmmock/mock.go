package slurmmock

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/meerkat-pipeline/mkpipe/cmd/mkpipe/subcommands/common"
	"github.com/meerkat-pipeline/mkpipe/pkg/slurm"
)

type SubmitCall struct {
	Path string
	Deps []slurm.Dependency
}

type Impl struct {
	Submit     func(ctx context.Context, path string, deps ...slurm.Dependency) (slurm.JobID, error)
	Cancel     func(ctx context.Context, ids ...slurm.JobID) error
	Accounting func(ctx context.Context, ids ...slurm.JobID) ([]slurm.JobInfo, error)
}

type Calls struct {
	Submit     []SubmitCall
	Cancel     [][]slurm.JobID
	Accounting [][]slurm.JobID
}

// Mock is a fake scheduler. Calls without Impl make the test fail.
type Mock struct {
	t     *testing.T
	mu    sync.Mutex
	Impl  Impl
	Calls Calls
}

var _ common.Slurm = &Mock{}

func New(t *testing.T) *Mock {
	return &Mock{t: t}
}

// Sequential makes Submit return job ids 1001, 1002, ... in the order of calls.
func (m *Mock) Sequential() *Mock {
	next := 1000
	m.Impl.Submit = func(ctx context.Context, path string, deps ...slurm.Dependency) (slurm.JobID, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		next += 1
		return slurm.JobID(fmt.Sprintf("%d", next)), nil
	}
	return m
}

func (m *Mock) Submit(ctx context.Context, path string, deps ...slurm.Dependency) (slurm.JobID, error) {
	m.t.Helper()
	m.mu.Lock()
	m.Calls.Submit = append(m.Calls.Submit, SubmitCall{Path: path, Deps: deps})
	m.mu.Unlock()
	if m.Impl.Submit == nil {
		m.t.Fatal("Submit is not implemented")
	}
	return m.Impl.Submit(ctx, path, deps...)
}

func (m *Mock) Cancel(ctx context.Context, ids ...slurm.JobID) error {
	m.t.Helper()
	m.mu.Lock()
	m.Calls.Cancel = append(m.Calls.Cancel, ids)
	m.mu.Unlock()
	if m.Impl.Cancel == nil {
		m.t.Fatal("Cancel is not implemented")
	}
	return m.Impl.Cancel(ctx, ids...)
}

func (m *Mock) Accounting(ctx context.Context, ids ...slurm.JobID) ([]slurm.JobInfo, error) {
	m.t.Helper()
	m.mu.Lock()
	m.Calls.Accounting = append(m.Calls.Accounting, ids)
	m.mu.Unlock()
	if m.Impl.Accounting == nil {
		m.t.Fatal("Accounting is not implemented")
	}
	return m.Impl.Accounting(ctx, ids...)
}
