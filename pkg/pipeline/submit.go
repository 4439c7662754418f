package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/slurm"
	"golang.org/x/sync/errgroup"
)

// Submitter queues batch scripts. *slurm.Client is a Submitter.
type Submitter interface {
	Submit(ctx context.Context, path string, deps ...slurm.Dependency) (slurm.JobID, error)
	Cancel(ctx context.Context, ids ...slurm.JobID) error
}

// Submit queues jobs of the build.
//
// Jobs are submitted level by level of the job graph; jobs in a level are submitted concurrently.
// Job ids are recorded to [run] jobids of the config file, and helper scripts are written.
// When a submission fails, jobs submitted so far are cancelled.
// The self-calibration loop of the config starts from 0 again.
//
// Batch scripts should be written by Write in advance.
func Submit(ctx context.Context, b *Build, client Submitter) ([]slurm.JobID, error) {
	levels, err := b.Graph.Levels()
	if err != nil {
		return nil, err
	}
	if err := ResetLoop(ctx, b.ConfigPath); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	submitted := []slurm.JobID{}

	for _, level := range levels {
		eg, egctx := errgroup.WithContext(ctx)
		for _, id := range level {
			step, ok := b.Step(id)
			if !ok {
				return nil, fmt.Errorf("step for %s is not found", id)
			}
			ups := b.Graph.Upstreams(id)
			dep := slurm.Dependency{Type: slurm.AfterOK, JobIDs: []slurm.JobID{}}
			if len(ups) == 0 {
				dep.JobIDs = append(dep.JobIDs, b.External...)
			}
			for _, u := range ups {
				us, _ := b.Step(u)
				dep.JobIDs = append(dep.JobIDs, us.JobID)
			}

			eg.Go(func() error {
				jobid, err := client.Submit(egctx, step.SbatchPath, dep)
				if err != nil {
					return fmt.Errorf("submitting %s: %w", step.Name, err)
				}
				mu.Lock()
				defer mu.Unlock()
				step.JobID = jobid
				submitted = append(submitted, jobid)
				node, _ := b.Graph.Node(step.ID)
				node.JobID = jobid
				node.Status = slurm.StatePending
				return b.Graph.UpdateNode(node)
			})
		}
		if err := eg.Wait(); err != nil {
			if len(submitted) != 0 {
				// ctx may be done already.
				if cerr := client.Cancel(context.WithoutCancel(ctx), submitted...); cerr != nil {
					err = errors.Join(err, cerr)
				}
			}
			return nil, err
		}
	}

	ids := make([]slurm.JobID, 0, len(b.Steps))
	for _, s := range b.Steps {
		ids = append(ids, s.JobID)
	}

	if err := RecordJobs(ctx, b.ConfigPath, ids); err != nil {
		return ids, err
	}
	helpers, err := b.Helpers(ids)
	if err != nil {
		return ids, err
	}
	if err := WriteHelpers(b.Dir, helpers); err != nil {
		return ids, err
	}
	return ids, nil
}

// RecordJobs writes job ids to [run] jobids of the config file.
func RecordJobs(ctx context.Context, cfgpath string, ids []slurm.JobID) error {
	values := make([]string, 0, len(ids))
	for _, id := range ids {
		values = append(values, string(id))
	}
	return pconfig.Update(ctx, cfgpath, func(c *pconfig.Config) error {
		c.Set(pconfig.SectionRun, "jobids", pconfig.StringList(values...))
		return nil
	})
}

// RecordedJobs reads [run] jobids.
func RecordedJobs(cfg *pconfig.Config) ([]slurm.JobID, error) {
	if !cfg.Has(pconfig.SectionRun, "jobids") {
		return []slurm.JobID{}, nil
	}
	values, err := cfg.Strings(pconfig.SectionRun, "jobids")
	if err != nil {
		// ids may be written as numbers.
		v, gerr := cfg.Get(pconfig.SectionRun, "jobids")
		if gerr != nil {
			return nil, err
		}
		values = []string{}
		for _, it := range v.Items() {
			values = append(values, it.Text())
		}
		if len(values) == 0 && !v.IsSequence() {
			values = append(values, v.Text())
		}
	}
	ret := []slurm.JobID{}
	for _, v := range values {
		ids, err := slurm.ParseJobIDs(v)
		if err != nil {
			return nil, err
		}
		ret = append(ret, ids...)
	}
	return ret, nil
}
