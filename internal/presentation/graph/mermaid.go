package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/flow/pkg/domain"
)

// Overlay contains run state to highlight on the graph.
type Overlay struct {
	VisitedNodes []string
	FailedNode   string
}

// edge is a pending connection into the next rendered node.
type edge struct {
	from  string
	label string
}

type mermaid struct {
	sb strings.Builder
}

// GenerateMermaid produces a Mermaid flowchart of an assembly.
// Shapes follow the node kind:
// - Step: [Rectangle]
// - Switch: {Rhombus}
// - Parallel: {{Hexagon}} fork and ((Circle)) join
// - SubFlow: subgraph
func GenerateMermaid(asm *domain.Assembly, overlay *Overlay) string {
	m := &mermaid{}
	m.sb.WriteString("graph TD\n")
	m.sb.WriteString("    start((\"start\"))\n")

	var nodes []domain.Node
	if asm != nil {
		nodes = asm.Nodes
	}
	exits := m.list(nodes, []edge{{from: "start"}}, "    ")

	m.sb.WriteString("    finish((\"end\"))\n")
	m.connect(exits, "finish", "    ")

	if overlay != nil {
		m.overlay(overlay)
	}
	return m.sb.String()
}

func (m *mermaid) list(nodes []domain.Node, in []edge, indent string) []edge {
	for i := range nodes {
		in = m.node(&nodes[i], in, indent)
	}
	return in
}

func (m *mermaid) node(n *domain.Node, in []edge, indent string) []edge {
	id := sanitizeMermaidID(n.ID)

	switch n.Kind {
	case domain.KindStep:
		label := n.Type
		if n.Title != "" {
			label = n.Title + "<br/>" + n.Type
		}
		fmt.Fprintf(&m.sb, "%s%s[\"%s\"]\n", indent, id, escape(label))
		m.connect(in, id, indent)
		return []edge{{from: id}}

	case domain.KindSwitch:
		fmt.Fprintf(&m.sb, "%s%s{\"%s\"}\n", indent, id, escape(title(n, "switch")))
		m.connect(in, id, indent)
		var out []edge
		for _, c := range n.Cases {
			out = append(out, m.list(c.Nodes, []edge{{from: id, label: c.Condition}}, indent)...)
		}
		if n.Otherwise != nil {
			out = append(out, m.list(n.Otherwise, []edge{{from: id, label: "otherwise"}}, indent)...)
		} else {
			out = append(out, edge{from: id, label: "no match"})
		}
		return out

	case domain.KindSubFlow:
		fmt.Fprintf(&m.sb, "%ssubgraph %s [\"%s\"]\n", indent, id, escape(title(n, "subflow")))
		out := m.list(n.Nodes, in, indent+"    ")
		fmt.Fprintf(&m.sb, "%send\n", indent)
		return out

	case domain.KindParallel:
		join := id + "_join"
		fmt.Fprintf(&m.sb, "%s%s{{\"%s\"}}\n", indent, id, escape(title(n, "parallel")))
		m.connect(in, id, indent)
		var out []edge
		for _, b := range n.Branches {
			out = append(out, m.list(b.Nodes, []edge{{from: id, label: b.Name}}, indent)...)
		}
		if len(n.Branches) == 0 {
			out = []edge{{from: id}}
		}
		fmt.Fprintf(&m.sb, "%s%s((\"join\"))\n", indent, join)
		m.connect(out, join, indent)
		return []edge{{from: join}}
	}
	return in
}

func (m *mermaid) connect(in []edge, to, indent string) {
	for _, e := range in {
		if e.label == "" {
			fmt.Fprintf(&m.sb, "%s%s --> %s\n", indent, e.from, to)
			continue
		}
		fmt.Fprintf(&m.sb, "%s%s -- \"%s\" --> %s\n", indent, e.from, escape(e.label), to)
	}
}

func (m *mermaid) overlay(o *Overlay) {
	m.sb.WriteString("\n    %% Overlay Styles\n")
	// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme
	m.sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
	m.sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;\n")

	seen := make(map[string]bool)
	for _, id := range o.VisitedNodes {
		safeID := sanitizeMermaidID(id)
		if id == "" || seen[safeID] || id == o.FailedNode {
			continue
		}
		seen[safeID] = true
		fmt.Fprintf(&m.sb, "    class %s visited;\n", safeID)
	}
	if o.FailedNode != "" {
		fmt.Fprintf(&m.sb, "    class %s failed;\n", sanitizeMermaidID(o.FailedNode))
	}
}

func title(n *domain.Node, fallback string) string {
	if n.Title != "" {
		return n.Title
	}
	return fallback
}

// escape replaces double quotes, which would end a Mermaid label.
func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return "n_" + s
}
