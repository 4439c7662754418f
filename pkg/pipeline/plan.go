// Package pipeline plans batch jobs of a pipeline run and submits them.
//
// A plan is made from the pipeline config only. Each job gets a batch script
// running one pipeline script in a container, and a place in the job graph.
package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/meerkat-pipeline/mkpipe/pkg/bookkeeping"
	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/configs/site"
	"github.com/meerkat-pipeline/mkpipe/pkg/jobgraph"
	"github.com/meerkat-pipeline/mkpipe/pkg/slurm"
)

const (
	SelfcalPart1 = "selfcal_part1"
	SelfcalPart2 = "selfcal_part2"

	// directory having batch scripts, relative to the build directory
	JobScriptDir = "jobScripts"

	// directory having logs of jobs, relative to the working directory of each job
	LogDir = "logs"

	SubmitScript = "submit_pipeline.sh"
)

var ErrNoScripts = errors.New("no scripts to run")

// Options are how a plan is made.
type Options struct {
	// path to the config file. The directory of it is the build directory.
	ConfigPath string

	// site profile. Optional.
	Profile *site.Profile

	// command to call mkpipe in batch scripts. Default is "mkpipe".
	Executable string
}

// Step is a batch job.
type Step struct {
	ID jobgraph.NodeID

	// job name
	Name string

	Spec pconfig.ScriptSpec

	// path to the script to be run
	ScriptPath string

	// self-calibration loop of the step. -1 for steps out of the loop.
	Loop int

	// spectral window of the step. Nil for steps on the whole band.
	SPW *SPW

	// working directory of the job
	Dir string

	// config file the job reads and writes
	ConfigPath string

	Container string
	Resources slurm.Resources
	Command   string

	Sbatch slurm.Script

	// path to the batch script, set by Plan.
	SbatchPath string

	// given on submission
	JobID slurm.JobID
}

// Build is a planned pipeline run.
type Build struct {
	Config     *pconfig.Config
	ConfigPath string
	Dir        string

	Steps []*Step
	Graph *jobgraph.Graph

	SPWs []SPW

	// config of each SPW, by label
	SPWConfigs map[string]*pconfig.Config

	// jobs outside of the pipeline which the first jobs wait for
	External []slurm.JobID

	// command to call mkpipe
	Executable string
}

// Step returns the step of the node.
func (b *Build) Step(id jobgraph.NodeID) (*Step, bool) {
	for _, s := range b.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Plan makes a Build from the config.
func Plan(cfg *pconfig.Config, opts Options) (*Build, error) {
	if opts.ConfigPath == "" {
		return nil, fmt.Errorf("config path is required")
	}
	cfgpath, err := filepath.Abs(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Executable == "" {
		opts.Executable = "mkpipe"
	}

	lists := map[string][]pconfig.ScriptSpec{}
	for _, key := range []string{"precal_scripts", "scripts", "postcal_scripts"} {
		if !cfg.Has(pconfig.SectionSlurm, key) {
			continue
		}
		if lists[key], err = cfg.Scripts(pconfig.SectionSlurm, key); err != nil {
			return nil, err
		}
	}
	precal, scripts, postcal := lists["precal_scripts"], lists["scripts"], lists["postcal_scripts"]
	if len(precal)+len(scripts)+len(postcal) == 0 {
		return nil, ErrNoScripts
	}

	nloops := 0
	if cfg.Has(pconfig.SectionSelfcal, "nloops") {
		if nloops, err = cfg.Int(pconfig.SectionSelfcal, "nloops"); err != nil {
			return nil, err
		}
	}
	expandedPostcal := ExpandSelfcal(postcal, nloops)

	external := []slurm.JobID{}
	if cfg.Has(pconfig.SectionSlurm, "dependencies") {
		deps, err := cfg.Strings(pconfig.SectionSlurm, "dependencies")
		if err != nil {
			return nil, err
		}
		for _, d := range deps {
			ids, err := slurm.ParseJobIDs(d)
			if err != nil {
				return nil, err
			}
			external = append(external, ids...)
		}
	}

	b := &Build{
		Config:     cfg,
		ConfigPath: cfgpath,
		Dir:        filepath.Dir(cfgpath),
		Steps:      []*Step{},
		Graph:      jobgraph.New(),
		SPWs:       []SPW{},
		SPWConfigs: map[string]*pconfig.Config{},
		External:   external,
		Executable: opts.Executable,
	}

	spws, err := planSPWs(cfg)
	if err != nil {
		return nil, err
	}

	// jobs may run in directories of spectral windows.
	planning := cfg.Clone()
	if err := RebasePaths(planning, b.Dir); err != nil {
		return nil, err
	}
	p := &planner{cfg: planning, opts: opts, build: b, names: map[string]int{}}

	if len(spws) == 0 {
		chain := append(append(toEntries(precal), toEntries(scripts)...), expandedPostcal...)
		if _, err := p.chain(chain, nil, b.ConfigPath, nil); err != nil {
			return nil, err
		}
		return b, nil
	}

	b.SPWs = spws
	last, err := p.chain(toEntries(precal), nil, b.ConfigPath, nil)
	if err != nil {
		return nil, err
	}

	lasts := []jobgraph.NodeID{}
	for i := range spws {
		spw := &b.SPWs[i]
		spwcfg, err := SPWConfig(cfg, *spw, b.Dir)
		if err != nil {
			return nil, err
		}
		b.SPWConfigs[spw.Label()] = spwcfg
		spwpath := filepath.Join(b.Dir, spw.Label(), filepath.Base(b.ConfigPath))

		l, err := p.chain(toEntries(scripts), last, spwpath, spw)
		if err != nil {
			return nil, err
		}
		lasts = append(lasts, l...)
	}
	if len(lasts) == 0 {
		lasts = last
	}
	if _, err := p.chain(expandedPostcal, lasts, b.ConfigPath, nil); err != nil {
		return nil, err
	}
	return b, nil
}

// SPWConfig makes a config for the SPW from the config of the whole band.
//
// It runs only the per-SPW scripts on the SPW.
// Relative paths are made absolute from dir, the build directory.
func SPWConfig(cfg *pconfig.Config, spw SPW, dir string) (*pconfig.Config, error) {
	c := cfg.Clone()
	if err := RebasePaths(c, dir); err != nil {
		return nil, err
	}
	c.Set(pconfig.SectionCrosscal, "spw", pconfig.String(spw.Selection))
	c.Set(pconfig.SectionCrosscal, "nspw", pconfig.Int(1))
	c.Set(pconfig.SectionSlurm, "precal_scripts", pconfig.List())
	c.Set(pconfig.SectionSlurm, "postcal_scripts", pconfig.List())
	c.Set(pconfig.SectionSlurm, "dependencies", pconfig.String(""))
	c.Set(pconfig.SectionRun, "jobids", pconfig.List())
	return c, nil
}

func planSPWs(cfg *pconfig.Config) ([]SPW, error) {
	if !cfg.Has(pconfig.SectionCrosscal, "nspw") {
		return nil, nil
	}
	nspw, err := cfg.Int(pconfig.SectionCrosscal, "nspw")
	if err != nil {
		return nil, err
	}
	spw, err := cfg.String(pconfig.SectionCrosscal, "spw")
	if err != nil {
		return nil, err
	}
	if nspw <= 1 && !strings.Contains(spw, ",") {
		return nil, nil
	}
	bad, err := BadFreqRanges(cfg)
	if err != nil {
		return nil, err
	}
	return SplitSPW(spw, nspw, bad)
}

// BadFreqRanges reads [crosscal] badfreqranges.
func BadFreqRanges(cfg *pconfig.Config) ([]FreqRange, error) {
	if !cfg.Has(pconfig.SectionCrosscal, "badfreqranges") {
		return []FreqRange{}, nil
	}
	ranges, err := cfg.Strings(pconfig.SectionCrosscal, "badfreqranges")
	if err != nil {
		return nil, err
	}
	ret := make([]FreqRange, 0, len(ranges))
	for _, r := range ranges {
		fr, err := ParseFreqRange(r)
		if err != nil {
			return nil, err
		}
		ret = append(ret, fr)
	}
	return ret, nil
}

// entry is a script with its loop number.
type entry struct {
	spec pconfig.ScriptSpec
	loop int
}

func toEntries(specs []pconfig.ScriptSpec) []entry {
	ret := make([]entry, 0, len(specs))
	for _, s := range specs {
		ret = append(ret, entry{spec: s, loop: -1})
	}
	return ret
}

// ExpandSelfcal unrolls the self-calibration loop in scripts.
//
// A pair of selfcal_part1 and selfcal_part2 becomes nloops pairs followed by
// one more selfcal_part1, imaging with the last solution.
func ExpandSelfcal(scripts []pconfig.ScriptSpec, nloops int) []entry {
	ret := []entry{}
	for i := 0; i < len(scripts); i++ {
		s := scripts[i]
		if bookkeeping.StepName(s.Script) != SelfcalPart1 ||
			len(scripts) <= i+1 || bookkeeping.StepName(scripts[i+1].Script) != SelfcalPart2 {
			ret = append(ret, entry{spec: s, loop: -1})
			continue
		}
		part2 := scripts[i+1]
		for loop := 0; loop < nloops; loop++ {
			ret = append(ret, entry{spec: s, loop: loop}, entry{spec: part2, loop: loop})
		}
		ret = append(ret, entry{spec: s, loop: nloops})
		i++
	}
	return ret
}

type planner struct {
	cfg   *pconfig.Config
	opts  Options
	build *Build

	// times each job name is used
	names map[string]int
}

// chain adds entries as a linear chain of steps; the first step depends on after.
//
// It returns the id of the last step, or after when entries is empty.
func (p *planner) chain(entries []entry, after []jobgraph.NodeID, cfgpath string, spw *SPW) ([]jobgraph.NodeID, error) {
	prev := after
	for _, e := range entries {
		step, err := p.step(e, cfgpath, spw)
		if err != nil {
			return nil, err
		}
		node := jobgraph.Node{ID: step.ID, Label: step.Name, Step: step.Spec.Script}
		if spw != nil {
			node.SPW = spw.Label()
		}
		if err := p.build.Graph.AddNode(node); err != nil {
			return nil, err
		}
		for _, u := range prev {
			if err := p.build.Graph.AddEdge(u, step.ID, slurm.AfterOK); err != nil {
				return nil, err
			}
		}
		p.build.Steps = append(p.build.Steps, step)
		prev = []jobgraph.NodeID{step.ID}
	}
	return prev, nil
}

func (p *planner) jobName(e entry, spw *SPW) string {
	prefix := ""
	if p.cfg.Has(pconfig.SectionSlurm, "name") {
		prefix, _ = p.cfg.String(pconfig.SectionSlurm, "name")
	}
	if spw != nil {
		prefix += spw.Label()
	}
	name := bookkeeping.StepName(e.spec.Script)
	if 0 <= e.loop {
		name += "_loop" + strconv.Itoa(e.loop)
	}
	if prefix != "" {
		name = prefix + "_" + name
	}

	// the same script may run twice in a chain, like xx_yy_solve.
	p.names[name] += 1
	if n := p.names[name]; 1 < n {
		name = fmt.Sprintf("%s_%d", name, n)
	}
	return name
}

func (p *planner) step(e entry, cfgpath string, spw *SPW) (*Step, error) {
	name := p.jobName(e, spw)
	dir := filepath.Dir(cfgpath)

	res, err := StepResources(p.cfg, e.spec.MPI)
	if err != nil {
		return nil, err
	}

	container := e.spec.Container
	if container == "" {
		if container, err = p.cfg.String(pconfig.SectionSlurm, "container"); err != nil {
			return nil, err
		}
	}
	if container == "" && p.opts.Profile != nil {
		container = p.opts.Profile.Container
	}

	mpiWrapper := ""
	if e.spec.MPI {
		if mpiWrapper, err = p.cfg.String(pconfig.SectionSlurm, "mpi_wrapper"); err != nil {
			return nil, err
		}
	}

	scriptPath := ResolveScript(p.cfg, p.opts.Profile, e.spec.Script)
	command := Command(CommandOptions{
		MPIWrapper: mpiWrapper,
		Container:  container,
		Script:     scriptPath,
		ConfigPath: cfgpath,
		JobName:    name,
	})

	modules := []string{}
	if p.cfg.Has(pconfig.SectionSlurm, "modules") {
		if modules, err = p.cfg.Strings(pconfig.SectionSlurm, "modules"); err != nil {
			return nil, err
		}
	}

	mkpipe := func(args ...string) string {
		return p.opts.Executable + " " + slurm.Command(args...)
	}
	preamble := []string{}
	if spw != nil {
		preamble = append(preamble, mkpipe("config", "sync", "--config", cfgpath, "--from", p.build.ConfigPath))
	}
	preamble = append(preamble, mkpipe("state", "check", "--config", cfgpath))
	if 0 <= e.loop {
		// the loop counter may be left by an earlier run.
		preamble = append(preamble, mkpipe("config", "set", "--config", cfgpath, "selfcal.loop", strconv.Itoa(e.loop)))
	}
	epilogue := []string{}
	if bookkeeping.StepName(e.spec.Script) == SelfcalPart2 {
		epilogue = append(epilogue, mkpipe("selfcal", "advance", "--config", cfgpath))
	}

	step := &Step{
		ID:         jobgraph.NodeID(name),
		Name:       name,
		Spec:       e.spec,
		ScriptPath: scriptPath,
		Loop:       e.loop,
		SPW:        spw,
		Dir:        dir,
		ConfigPath: cfgpath,
		Container:  container,
		Resources:  res,
		Command:    command,
		SbatchPath: filepath.Join(p.build.Dir, JobScriptDir, name+".sbatch"),
	}
	step.Sbatch = slurm.Script{
		JobName:   name,
		Resources: res,
		Output:    filepath.Join(dir, LogDir, name+"-%j.out"),
		Error:     filepath.Join(dir, LogDir, name+"-%j.err"),
		WorkDir:   dir,
		Modules:   modules,
		Env:       []slurm.EnvVar{{Name: "MKPIPE_CONFIG", Value: cfgpath}},
		Preamble:  preamble,
		Commands:  []string{command},
		OnFailure: []string{mkpipe("state", "fail", "--config", cfgpath, "--step", name)},
		Epilogue:  epilogue,
	}
	return step, nil
}

// StepResources reads resources of a job from [slurm].
//
// MPI jobs take nodes x ntasks_per_node tasks. Others take a task on a node.
func StepResources(cfg *pconfig.Config, mpi bool) (slurm.Resources, error) {
	res := slurm.Resources{Nodes: 1, NTasksPerNode: 1}
	var err error
	str := func(key string) string {
		if err != nil || !cfg.Has(pconfig.SectionSlurm, key) {
			return ""
		}
		var s string
		s, err = cfg.String(pconfig.SectionSlurm, key)
		return s
	}
	num := func(key string, def int) int {
		if err != nil || !cfg.Has(pconfig.SectionSlurm, key) {
			return def
		}
		var n int
		n, err = cfg.Int(pconfig.SectionSlurm, key)
		return n
	}

	if mpi {
		res.Nodes = num("nodes", 1)
		res.NTasksPerNode = num("ntasks_per_node", 1)
		res.Plane = num("plane", 0)
	}
	res.Partition = str("partition")
	res.Account = str("account")
	res.Reservation = str("reservation")
	res.Exclude = str("exclude")
	memtext := ""
	if cfg.Has(pconfig.SectionSlurm, "mem") && err == nil {
		var v pconfig.Value
		if v, err = cfg.Get(pconfig.SectionSlurm, "mem"); err == nil {
			memtext = v.Text()
		}
	}
	timetext := str("time")
	if err != nil {
		return slurm.Resources{}, err
	}
	if res.Nodes < 1 || res.NTasksPerNode < 1 {
		return slurm.Resources{}, fmt.Errorf(
			"%w: [slurm] nodes and ntasks_per_node should be positive", pconfig.ErrTypeMismatch,
		)
	}

	if memtext != "" {
		if res.Memory, err = slurm.ParseMemory(memtext); err != nil {
			return slurm.Resources{}, err
		}
	}
	if timetext != "" {
		if res.Time, err = slurm.ParseTime(timetext); err != nil {
			return slurm.Resources{}, err
		}
	}
	return res, nil
}

// ResolveScript returns the path to the script.
//
// A relative path is taken from [run] scriptdir, or the scriptDir of the profile.
func ResolveScript(cfg *pconfig.Config, profile *site.Profile, script string) string {
	if filepath.IsAbs(script) {
		return script
	}
	dir := ""
	if cfg.Has(pconfig.SectionRun, "scriptdir") {
		dir, _ = cfg.String(pconfig.SectionRun, "scriptdir")
	}
	if dir == "" && profile != nil {
		dir = profile.ScriptDir
	}
	if dir == "" {
		return script
	}
	return filepath.Join(dir, script)
}

type CommandOptions struct {
	// command wrapping MPI jobs, like "mpirun". Empty for serial jobs.
	MPIWrapper string
	Container  string
	Script     string
	ConfigPath string
	JobName    string
}

// UsesCASA reports whether scripts run in the container run with casa, not python.
func UsesCASA(container string) bool {
	return strings.Contains(strings.ToLower(filepath.Base(container)), "casa")
}

// Command builds the command line running a script.
func Command(o CommandOptions) string {
	words := []string{}
	if o.MPIWrapper != "" {
		words = append(words, o.MPIWrapper)
	}
	if o.Container == "" {
		words = append(words, "python", slurm.ShellQuote(o.Script))
	} else {
		words = append(words, "singularity", "exec", slurm.ShellQuote(o.Container))
		if UsesCASA(o.Container) {
			logfile := slurm.ShellQuote(filepath.Join(LogDir, o.JobName)+"-") + "${SLURM_JOB_ID}.casa"
			words = append(
				words,
				"casa", "--nologger", "--nogui", "--logfile", logfile,
				"-c", slurm.ShellQuote(o.Script),
			)
		} else {
			words = append(words, "python", slurm.ShellQuote(o.Script))
		}
	}
	words = append(words, "--config", slurm.ShellQuote(o.ConfigPath))
	return strings.Join(words, " ")
}
