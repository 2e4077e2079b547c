package classify

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
)

// ToDOT renders p as a Graphviz digraph: one cluster per stage, joined by
// barrier points.
func ToDOT(p Plan) string {
	var buf bytes.Buffer
	buf.WriteString("digraph plan {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12];\n")
	buf.WriteString("\n")
	fmt.Fprintf(&buf, "  start [label=%q, shape=oval];\n", fmt.Sprintf("%s / %s", p.Genre, p.Host))

	prev := "start"
	for _, s := range p.Stages {
		fmt.Fprintf(&buf, "\n  subgraph cluster_%d {\n", s.Index)
		fmt.Fprintf(&buf, "    label=%q;\n", fmt.Sprintf("%d: %s", s.Index+1, s.Operation))
		for _, t := range s.Tasks {
			fmt.Fprintf(&buf, "    %q [label=%q];\n", taskNode(s, t), t.Provider)
		}
		buf.WriteString("  }\n")

		barrier := fmt.Sprintf("barrier_%d", s.Index)
		fmt.Fprintf(&buf, "  %s [shape=point];\n", barrier)
		for _, t := range s.Tasks {
			fmt.Fprintf(&buf, "  %s -> %q;\n", prev, taskNode(s, t))
			fmt.Fprintf(&buf, "  %q -> %s;\n", taskNode(s, t), barrier)
		}
		prev = barrier
	}

	buf.WriteString("}\n")
	return buf.String()
}

func taskNode(s Stage, t Task) string {
	return fmt.Sprintf("%d:%s", s.Index, t.Provider)
}

// RenderSVG renders DOT source to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
