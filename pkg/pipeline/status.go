package pipeline

import (
	"github.com/meerkat-pipeline/mkpipe/pkg/slurm"
)

// Track puts recorded job ids and their accounting onto steps and nodes of the build.
//
// ids are taken as ids of steps in order when they are as many as steps,
// as Submit records them so.
// Each accounting entry is matched to a step by job id, or by job name if no id matches.
func (b *Build) Track(ids []slurm.JobID, infos []slurm.JobInfo) error {
	if len(ids) == len(b.Steps) {
		for i, s := range b.Steps {
			s.JobID = ids[i]
		}
	}

	for _, info := range infos {
		step := b.stepOf(info)
		if step == nil {
			continue
		}
		step.JobID = info.ID
		node, ok := b.Graph.Node(step.ID)
		if !ok {
			continue
		}
		node.JobID = info.ID
		node.Status = info.State
		if err := b.Graph.UpdateNode(node); err != nil {
			return err
		}
	}

	for _, s := range b.Steps {
		node, ok := b.Graph.Node(s.ID)
		if !ok || node.JobID == s.JobID {
			continue
		}
		node.JobID = s.JobID
		if err := b.Graph.UpdateNode(node); err != nil {
			return err
		}
	}
	return nil
}

func (b *Build) stepOf(info slurm.JobInfo) *Step {
	for _, s := range b.Steps {
		if s.JobID != "" && s.JobID == info.ID {
			return s
		}
	}
	for _, s := range b.Steps {
		if s.Name == info.Name {
			return s
		}
	}
	return nil
}
