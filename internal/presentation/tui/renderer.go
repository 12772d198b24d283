package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/flow/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// The style follows the terminal background; width 0 keeps glamour's default.
func NewRenderer(width int) (func(string) (string, error), error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return r.Render, nil
}

// Describe writes a markdown outline of an assembly.
func Describe(asm *domain.Assembly) string {
	var sb strings.Builder
	sb.WriteString("# Assembly\n\n")
	if asm.Version != "" {
		fmt.Fprintf(&sb, "Version: `%s`\n\n", asm.Version)
	}
	if len(asm.Nodes) == 0 {
		sb.WriteString("_No steps._\n")
		return sb.String()
	}
	describe(&sb, asm.Nodes, 0)
	return sb.String()
}

func describe(sb *strings.Builder, nodes []domain.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		prefix := fmt.Sprintf("%s- `%s` ", indent, n.ID)
		if n.Title != "" {
			prefix += "**" + n.Title + "** "
		}

		switch n.Kind {
		case domain.KindStep:
			fmt.Fprintf(sb, "%sstep `%s`%s\n", prefix, n.Type, params(n.Params))
		case domain.KindSwitch:
			fmt.Fprintf(sb, "%sswitch\n", prefix)
			for i, c := range n.Cases {
				fmt.Fprintf(sb, "%s  - case %d: `%s`\n", indent, i, c.Condition)
				describe(sb, c.Nodes, depth+2)
			}
			if n.Otherwise != nil {
				fmt.Fprintf(sb, "%s  - otherwise\n", indent)
				describe(sb, n.Otherwise, depth+2)
			}
		case domain.KindSubFlow:
			fmt.Fprintf(sb, "%ssubflow\n", prefix)
			describe(sb, n.Nodes, depth+1)
		case domain.KindParallel:
			fmt.Fprintf(sb, "%sparallel\n", prefix)
			for i, b := range n.Branches {
				fmt.Fprintf(sb, "%s  - branch `%s`\n", indent, b.Label(i))
				describe(sb, b.Nodes, depth+2)
			}
		}
	}
}

func params(p map[string]any) string {
	if len(p) == 0 {
		return ""
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, p[k]))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
