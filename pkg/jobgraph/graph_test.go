package jobgraph_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/meerkat-pipeline/mkpipe/pkg/jobgraph"
	"github.com/meerkat-pipeline/mkpipe/pkg/slurm"
	"github.com/meerkat-pipeline/mkpipe/pkg/utils/try"
)

// diamond builds
//
//	partition -> spw0 -> concat
//	          -> spw1 ->
func diamond(t *testing.T) *jobgraph.Graph {
	t.Helper()
	g := jobgraph.New()
	for _, id := range []jobgraph.NodeID{"partition", "spw0", "spw1", "concat"} {
		if err := g.AddNode(jobgraph.Node{ID: id, Label: string(id)}); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range [][2]jobgraph.NodeID{
		{"partition", "spw0"}, {"partition", "spw1"}, {"spw1", "concat"}, {"spw0", "concat"},
	} {
		if err := g.AddEdge(e[0], e[1], ""); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func TestGraph(t *testing.T) {
	t.Run("neighbours", func(t *testing.T) {
		g := diamond(t)
		if diff := cmp.Diff([]jobgraph.NodeID{"spw1", "spw0"}, g.Upstreams("concat")); diff != "" {
			t.Errorf("upstreams (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]jobgraph.NodeID{"spw0", "spw1"}, g.Downstreams("partition")); diff != "" {
			t.Errorf("downstreams (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]jobgraph.NodeID{"partition"}, g.Roots()); diff != "" {
			t.Errorf("roots (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]jobgraph.NodeID{"concat"}, g.Leaves()); diff != "" {
			t.Errorf("leaves (-want +got):\n%s", diff)
		}
	})

	t.Run("edges default to afterok and are not duplicated", func(t *testing.T) {
		g := diamond(t)
		if err := g.AddEdge("partition", "spw0", slurm.AfterAny); err != nil {
			t.Fatal(err)
		}
		expected := []jobgraph.Edge{
			{From: "partition", To: "spw0", Type: slurm.AfterOK},
			{From: "partition", To: "spw1", Type: slurm.AfterOK},
			{From: "spw1", To: "concat", Type: slurm.AfterOK},
			{From: "spw0", To: "concat", Type: slurm.AfterOK},
		}
		if diff := cmp.Diff(expected, g.Edges()); diff != "" {
			t.Errorf("edges (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown nodes", func(t *testing.T) {
		g := diamond(t)
		if err := g.AddEdge("partition", "nowhere", ""); !errors.Is(err, jobgraph.ErrUnknownNode) {
			t.Errorf("unexpected error: %v", err)
		}
		if err := g.UpdateNode(jobgraph.Node{ID: "nowhere"}); !errors.Is(err, jobgraph.ErrUnknownNode) {
			t.Errorf("unexpected error: %v", err)
		}
		if err := g.AddNode(jobgraph.Node{ID: "spw0"}); !errors.Is(err, jobgraph.ErrDuplicateNode) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("topological order is stable", func(t *testing.T) {
		g := diamond(t)
		actual := try.To(g.TopologicalOrder()).OrFatal(t)
		expected := []jobgraph.NodeID{"partition", "spw0", "spw1", "concat"}
		if diff := cmp.Diff(expected, actual); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("levels are grouped by the longest path", func(t *testing.T) {
		g := diamond(t)
		if err := g.AddNode(jobgraph.Node{ID: "image"}); err != nil {
			t.Fatal(err)
		}
		// image depends on partition directly and on concat.
		for _, from := range []jobgraph.NodeID{"partition", "concat"} {
			if err := g.AddEdge(from, "image", ""); err != nil {
				t.Fatal(err)
			}
		}
		actual := try.To(g.Levels()).OrFatal(t)
		expected := [][]jobgraph.NodeID{{"partition"}, {"spw0", "spw1"}, {"concat"}, {"image"}}
		if diff := cmp.Diff(expected, actual); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("cycle is detected", func(t *testing.T) {
		g := diamond(t)
		if err := g.AddEdge("concat", "partition", ""); err != nil {
			t.Fatal(err)
		}
		if _, err := g.TopologicalOrder(); !errors.Is(err, jobgraph.ErrCycle) {
			t.Errorf("unexpected error: %v", err)
		}
		if _, err := g.Levels(); !errors.Is(err, jobgraph.ErrCycle) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestGraph_GenerateDot(t *testing.T) {
	g := jobgraph.New()
	nodes := []jobgraph.Node{
		{ID: "n0", Label: "partition", JobID: "101", Status: slurm.StateCompleted},
		{ID: "n1", Label: "flag_round_1", SPW: "880~960MHz", JobID: "102", Status: slurm.StateFailed},
		{ID: "n2", Label: "setjy <spw>"},
	}
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.AddEdge("n0", "n1", ""); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge("n1", "n2", slurm.AfterAny); err != nil {
		t.Fatal(err)
	}

	sb := new(strings.Builder)
	if err := g.GenerateDot(sb); err != nil {
		t.Fatal(err)
	}
	actual := sb.String()

	for _, want := range []string{
		"digraph G {\n\tnode [shape=record fontsize=10]\n\tedge [fontsize=10]\n",
		`<FONT COLOR="#007700"><B>COMPLETED</B></FONT>`,
		`<FONT COLOR="red"><B>FAILED</B></FONT>`,
		`<FONT COLOR="gray"><B>NOT SUBMITTED</B></FONT>`,
		`spw: 880~960MHz`,
		`setjy &lt;spw&gt;`,
		"\t\"n0\" -> \"n1\";\n",
		"\t\"n1\" -> \"n2\" [label=\"afterany\"];\n",
	} {
		if !strings.Contains(actual, want) {
			t.Errorf("%q is not found in:\n%s", want, actual)
		}
	}
	if !strings.HasSuffix(actual, "\n}") {
		t.Errorf("not closed:\n%s", actual)
	}
}
