// Package jobgraph is a directed acyclic graph of batch jobs.
package jobgraph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/meerkat-pipeline/mkpipe/pkg/slurm"
	"github.com/meerkat-pipeline/mkpipe/pkg/utils/maps"
)

var (
	ErrUnknownNode   = errors.New("unknown node")
	ErrDuplicateNode = errors.New("node is already in the graph")
	ErrCycle         = errors.New("graph has a cycle")
)

type NodeID string

// Node is a job.
type Node struct {
	ID NodeID

	// human readable name, usually the job name.
	Label string

	// script run by the job, like "flag_round_1.py".
	Step string

	// spectral window the job works on. Empty for jobs on the whole band.
	SPW string

	// id given by the scheduler. Empty until submitted.
	JobID slurm.JobID

	Status slurm.State
}

// Edge means To starts after From.
type Edge struct {
	From NodeID
	To   NodeID
	Type slurm.DependencyType
}

type Graph struct {
	nodes       *maps.Ordered[NodeID, Node]
	edges       []Edge
	upstreams   map[NodeID][]NodeID
	downstreams map[NodeID][]NodeID
}

func New() *Graph {
	return &Graph{
		nodes:       maps.NewOrdered[NodeID, Node](),
		edges:       []Edge{},
		upstreams:   map[NodeID][]NodeID{},
		downstreams: map[NodeID][]NodeID{},
	}
}

func (g *Graph) AddNode(n Node) error {
	if g.nodes.Has(n.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	g.nodes.Set(n.ID, n)
	return nil
}

// UpdateNode replaces a node having the same id.
func (g *Graph) UpdateNode(n Node) error {
	if !g.nodes.Has(n.ID) {
		return fmt.Errorf("%w: %s", ErrUnknownNode, n.ID)
	}
	g.nodes.Set(n.ID, n)
	return nil
}

// AddEdge adds a dependency. Adding the same pair twice is noop.
func (g *Graph) AddEdge(from, to NodeID, typ slurm.DependencyType) error {
	for _, id := range []NodeID{from, to} {
		if !g.nodes.Has(id) {
			return fmt.Errorf("%w: %s", ErrUnknownNode, id)
		}
	}
	if slices.Contains(g.downstreams[from], to) {
		return nil
	}
	if typ == "" {
		typ = slurm.AfterOK
	}
	g.edges = append(g.edges, Edge{From: from, To: to, Type: typ})
	g.downstreams[from] = append(g.downstreams[from], to)
	g.upstreams[to] = append(g.upstreams[to], from)
	return nil
}

func (g *Graph) Node(id NodeID) (Node, bool) {
	return g.nodes.Get(id)
}

// Nodes returns nodes in insertion order.
func (g *Graph) Nodes() []Node {
	return g.nodes.Values()
}

func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

func (g *Graph) Len() int {
	return g.nodes.Len()
}

// Upstreams returns nodes which id depends on, in the order of edges added.
func (g *Graph) Upstreams(id NodeID) []NodeID {
	return slices.Clone(g.upstreams[id])
}

// Downstreams returns nodes depending on id, in the order of edges added.
func (g *Graph) Downstreams(id NodeID) []NodeID {
	return slices.Clone(g.downstreams[id])
}

// EdgesTo returns edges coming into id.
func (g *Graph) EdgesTo(id NodeID) []Edge {
	ret := []Edge{}
	for _, e := range g.edges {
		if e.To == id {
			ret = append(ret, e)
		}
	}
	return ret
}

// Roots returns nodes without upstreams.
func (g *Graph) Roots() []NodeID {
	ret := []NodeID{}
	for _, id := range g.nodes.Keys() {
		if len(g.upstreams[id]) == 0 {
			ret = append(ret, id)
		}
	}
	return ret
}

// Leaves returns nodes without downstreams.
func (g *Graph) Leaves() []NodeID {
	ret := []NodeID{}
	for _, id := range g.nodes.Keys() {
		if len(g.downstreams[id]) == 0 {
			ret = append(ret, id)
		}
	}
	return ret
}

// TopologicalOrder returns node ids where every node comes after its upstreams.
//
// Among nodes ready at the same time, one added earlier comes first.
func (g *Graph) TopologicalOrder() ([]NodeID, error) {
	indegree := map[NodeID]int{}
	for _, id := range g.nodes.Keys() {
		indegree[id] = len(g.upstreams[id])
	}
	position := map[NodeID]int{}
	for i, id := range g.nodes.Keys() {
		position[id] = i
	}

	ready := g.Roots()
	order := make([]NodeID, 0, g.nodes.Len())
	for len(ready) != 0 {
		slices.SortFunc(ready, func(a, b NodeID) int { return position[a] - position[b] })
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, d := range g.downstreams[id] {
			indegree[d] -= 1
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(order) != g.nodes.Len() {
		stuck := []NodeID{}
		for _, id := range g.nodes.Keys() {
			if 0 < indegree[id] {
				stuck = append(stuck, id)
			}
		}
		return nil, fmt.Errorf("%w: around %v", ErrCycle, stuck)
	}
	return order, nil
}

// Levels groups nodes by the longest distance from roots.
//
// Nodes in a level do not depend on each other, and depend only on nodes in earlier levels.
func (g *Graph) Levels() ([][]NodeID, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	depth := map[NodeID]int{}
	levels := [][]NodeID{}
	for _, id := range order {
		d := 0
		for _, u := range g.upstreams[id] {
			d = max(d, depth[u]+1)
		}
		depth[id] = d
		for len(levels) <= d {
			levels = append(levels, []NodeID{})
		}
		levels[d] = append(levels[d], id)
	}
	return levels, nil
}
