// Package site manages profiles of clusters where the pipeline runs.
//
// A profile holds what differs between clusters and accounts:
// SLURM account and partition, the container image, where pipeline scripts are
// and the resource limits of the partition.
package site

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/slurm"
	yaml "gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/api/resource"
)

var ErrProfileStoreNotFound = errors.New("profile store is not found")
var ErrCannotCreateStore = errors.New("cannot create profile store")
var ErrCannotUpdateStore = errors.New("cannot update profile store")
var ErrProfileInvalid = errors.New("site profile is invalid")
var ErrProfileNotFound = errors.New("site profile is not found")
var ErrExceedsLimits = errors.New("resources exceed site limits")

// DefaultStorePath returns the default path of the profile store, ~/.mkpipe/profile .
func DefaultStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".mkpipe", "profile"), nil
}

// ProfileStore is a map from profile name to Profile.
type ProfileStore map[string]*Profile

// Get returns the named profile.
func (ps ProfileStore) Get(name string) (*Profile, error) {
	p, ok := ps[name]
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return p, nil
}

// Limits are upper bounds of resources a job can request. Zero values mean no limit.
type Limits struct {
	MaxNodes        int    `yaml:"maxNodes,omitempty"`
	MaxTasksPerNode int    `yaml:"maxTasksPerNode,omitempty"`
	MaxMemory       string `yaml:"maxMemory,omitempty"`
	MaxTime         string `yaml:"maxTime,omitempty"`
}

// Profile is settings of a cluster.
type Profile struct {
	Account   string `yaml:"account,omitempty"`
	Partition string `yaml:"partition,omitempty"`

	// path to the singularity image running pipeline scripts
	Container string `yaml:"container,omitempty"`

	MPIWrapper string   `yaml:"mpiWrapper,omitempty"`
	Modules    []string `yaml:"modules,omitempty"`

	// directory where pipeline scripts are
	ScriptDir string `yaml:"scriptDir,omitempty"`

	Reservation string `yaml:"reservation,omitempty"`

	Limits Limits `yaml:"limits,omitempty"`
}

// Verify Profile
//
// # Return
//
// nil if it is valid. Otherwise, ErrProfileInvalid error.
func (p *Profile) Verify() error {
	if p.Limits.MaxNodes < 0 {
		return fmt.Errorf("%w: limits.maxNodes is negative: %d", ErrProfileInvalid, p.Limits.MaxNodes)
	}
	if p.Limits.MaxTasksPerNode < 0 {
		return fmt.Errorf(
			"%w: limits.maxTasksPerNode is negative: %d", ErrProfileInvalid, p.Limits.MaxTasksPerNode,
		)
	}
	if p.Limits.MaxMemory != "" {
		if _, err := slurm.ParseMemory(p.Limits.MaxMemory); err != nil {
			return fmt.Errorf("%w: limits.maxMemory: %w", ErrProfileInvalid, err)
		}
	}
	if p.Limits.MaxTime != "" {
		if _, err := slurm.ParseTime(p.Limits.MaxTime); err != nil {
			return fmt.Errorf("%w: limits.maxTime: %w", ErrProfileInvalid, err)
		}
	}
	if p.ScriptDir != "" && !filepath.IsAbs(p.ScriptDir) {
		return fmt.Errorf("%w: scriptDir should be absolute: %s", ErrProfileInvalid, p.ScriptDir)
	}
	return nil
}

// Check tells whether r fits in the limits of the profile.
//
// The profile should be verified in advance.
func (p *Profile) Check(r slurm.Resources) error {
	l := p.Limits
	if 0 < l.MaxNodes && l.MaxNodes < r.Nodes {
		return fmt.Errorf("%w: nodes = %d > %d", ErrExceedsLimits, r.Nodes, l.MaxNodes)
	}
	if 0 < l.MaxTasksPerNode && l.MaxTasksPerNode < r.NTasksPerNode {
		return fmt.Errorf(
			"%w: ntasks_per_node = %d > %d", ErrExceedsLimits, r.NTasksPerNode, l.MaxTasksPerNode,
		)
	}
	if l.MaxMemory != "" && !r.Memory.IsZero() {
		max, err := slurm.ParseMemory(l.MaxMemory)
		if err != nil {
			return err
		}
		if r.Memory.Cmp(max) > 0 {
			return fmt.Errorf(
				"%w: mem = %s > %s", ErrExceedsLimits, slurm.FormatMemory(r.Memory), slurm.FormatMemory(max),
			)
		}
	}
	if l.MaxTime != "" && r.Time != 0 {
		max, err := slurm.ParseTime(l.MaxTime)
		if err != nil {
			return err
		}
		if max < r.Time {
			return fmt.Errorf(
				"%w: time = %s > %s", ErrExceedsLimits, slurm.FormatTime(r.Time), slurm.FormatTime(max),
			)
		}
	}
	return nil
}

// MaxMemory returns the memory limit, or false if unlimited.
func (p *Profile) MaxMemory() (resource.Quantity, bool) {
	if p.Limits.MaxMemory == "" {
		return resource.Quantity{}, false
	}
	q, err := slurm.ParseMemory(p.Limits.MaxMemory)
	return q, err == nil
}

// MaxTime returns the time limit, or false if unlimited.
func (p *Profile) MaxTime() (time.Duration, bool) {
	if p.Limits.MaxTime == "" {
		return 0, false
	}
	d, err := slurm.ParseTime(p.Limits.MaxTime)
	return d, err == nil
}

// Apply writes values of the profile into the pipeline config.
//
// Empty values in the profile leave the config as it is.
func (p *Profile) Apply(cfg *pipeline.Config) {
	set := func(section, key, value string) {
		if value != "" {
			cfg.Set(section, key, pipeline.String(value))
		}
	}
	set(pipeline.SectionSlurm, "account", p.Account)
	set(pipeline.SectionSlurm, "partition", p.Partition)
	set(pipeline.SectionSlurm, "container", p.Container)
	set(pipeline.SectionSlurm, "mpi_wrapper", p.MPIWrapper)
	set(pipeline.SectionSlurm, "reservation", p.Reservation)
	set(pipeline.SectionRun, "scriptdir", p.ScriptDir)
	if len(p.Modules) != 0 {
		cfg.Set(pipeline.SectionSlurm, "modules", pipeline.StringList(p.Modules...))
	}
}

// LoadProfileStore loads profile store from file.
func LoadProfileStore(filepath string) (ProfileStore, error) {
	buf, err := os.ReadFile(filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrProfileStoreNotFound, filepath)
		}
		return nil, err
	}
	return Unmarshal(buf)
}

// Unmarshal profile store from yaml in byte array.
func Unmarshal(buf []byte) (ProfileStore, error) {
	ret := map[string]*Profile{}
	if err := yaml.Unmarshal(buf, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Save profile store to file.
//
// The previous content is kept in "<path>.backup". Files are readable only by the owner.
func (ps ProfileStore) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0700)); err != nil {
		return err
	}

	buf, err := yaml.Marshal(ps)
	if err != nil {
		return err
	}

	bkpath := path + ".backup"
	f, err := os.OpenFile(path, os.O_RDWR, os.FileMode(0600))
	switch {
	case err == nil:
		// existing file may have loose permissions.
		if err := os.Chmod(path, os.FileMode(0600)); err != nil {
			f.Close()
			return err
		}
	case os.IsPermission(err):
		return fmt.Errorf("%w, because no permission to write file at %s", ErrCannotUpdateStore, path)
	case os.IsNotExist(err):
		f, err = newSafeFile(path)
		if err != nil {
			return fmt.Errorf("%w: cannot create a file at %s", ErrCannotCreateStore, path)
		}
	default:
		return err
	}
	defer f.Close()

	bk, err := newSafeFile(bkpath)
	if err != nil {
		return err
	}
	defer bk.Close()
	if _, err := io.Copy(bk, f); err != nil {
		return err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err = f.Write(buf)
	return err
}

// newSafeFile creates a new empty file which is accessible only by the current user.
//
// If the file already exists, it will be truncated.
func newSafeFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_RDWR, os.FileMode(0600))
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, os.FileMode(0600)); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
