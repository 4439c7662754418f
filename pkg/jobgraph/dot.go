package jobgraph

import (
	"fmt"
	"html"
	"io"

	"github.com/meerkat-pipeline/mkpipe/pkg/slurm"
)

func (n Node) ToDot(w io.Writer) error {
	status := "NOT SUBMITTED"
	if n.JobID != "" {
		status = "SUBMITTED"
	}
	if n.Status != "" {
		status = string(n.Status)
	}
	status = html.EscapeString(status)
	switch {
	case n.Status.IsSuccess():
		status = fmt.Sprintf(`<FONT COLOR="#007700"><B>%s</B></FONT>`, status)
	case n.Status.IsTerminal():
		status = fmt.Sprintf(`<FONT COLOR="red"><B>%s</B></FONT>`, status)
	case n.Status == slurm.StateRunning:
		status = fmt.Sprintf(`<FONT COLOR="orange"><B>%s</B></FONT>`, status)
	default:
		status = fmt.Sprintf(`<FONT COLOR="gray"><B>%s</B></FONT>`, status)
	}

	jobid := "-"
	if n.JobID != "" {
		jobid = string(n.JobID)
	}
	spw := ""
	if n.SPW != "" {
		spw = fmt.Sprintf(
			`<TR><TD COLSPAN="3"><FONT POINT-SIZE="8">spw: %s</FONT></TD></TR>`,
			html.EscapeString(n.SPW),
		)
	}

	_, err := fmt.Fprintf(
		w,
		`	"%s"[
		shape=none
		color="#1c5499"
		label=<
			<TABLE CELLSPACING="0">
				<TR><TD BGCOLOR="#1c5499"><FONT COLOR="#FFFFFF"><B>Job</B></FONT></TD><TD>%s</TD><TD>id: %s</TD></TR>
				%s
				<TR><TD COLSPAN="3">%s</TD></TR>
			</TABLE>
		>
	];
`,
		n.ID,
		status,
		html.EscapeString(jobid),
		spw,
		html.EscapeString(n.Label),
	)
	return err
}

func (e Edge) ToDot(w io.Writer) error {
	label := ""
	if e.Type != "" && e.Type != slurm.AfterOK {
		label = fmt.Sprintf(` [label="%s"]`, e.Type)
	}
	_, err := fmt.Fprintf(w, "\t\"%s\" -> \"%s\"%s;\n", e.From, e.To, label)
	return err
}

// GenerateDot writes the graph in graphviz dot language.
func (g *Graph) GenerateDot(w io.Writer) error {
	if _, err := io.WriteString(w, "digraph G {\n\tnode [shape=record fontsize=10]\n\tedge [fontsize=10]\n\n"); err != nil {
		return err
	}
	for _, n := range g.nodes.All() {
		if err := n.ToDot(w); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	for _, e := range g.edges {
		if err := e.ToDot(w); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n}")
	return err
}
