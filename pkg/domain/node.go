package domain

import (
	"sort"
	"strconv"
)

// NodeKind tags the variant held by a Node.
type NodeKind string

const (
	// KindStep dispatches a registered task.
	KindStep NodeKind = "step"
	// KindSwitch evaluates predicates and runs exactly one branch (or none).
	KindSwitch NodeKind = "switch"
	// KindSubFlow runs a nested node list against the same Context.
	KindSubFlow NodeKind = "subflow"
	// KindParallel runs several node lists concurrently.
	KindParallel NodeKind = "parallel"
)

// Reserved structural keys of the assembly document.
const (
	KeyAssembly  = "assembly"
	KeyExecute   = "execute"
	KeySwitch    = "switch"
	KeySubFlow   = "subflow"
	KeyParallel  = "parallel"
	KeyCase      = "case"
	KeyCondition = "condition"
	KeyOtherwise = "otherwise"
	KeyBranches  = "branches"
	KeyName      = "name"
	KeyTitle     = "title" // in a step body, never a task parameter
)

// Node is one element of an assembly.
// Only the fields relevant to its Kind are populated.
type Node struct {
	// ID is the position of the node in the tree (e.g. "2.case0.1").
	ID    string   `json:"id" yaml:"id"`
	Kind  NodeKind `json:"kind" yaml:"kind"`
	Title string   `json:"title,omitempty" yaml:"title,omitempty"`

	// Step
	Type   string         `json:"type,omitempty" yaml:"type,omitempty"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`

	// Switch
	Cases     []Case `json:"cases,omitempty" yaml:"cases,omitempty"`
	Otherwise []Node `json:"otherwise,omitempty" yaml:"otherwise,omitempty"`

	// SubFlow
	Nodes []Node `json:"nodes,omitempty" yaml:"nodes,omitempty"`

	// Parallel
	Branches []Branch `json:"branches,omitempty" yaml:"branches,omitempty"`
}

// Case is a guarded branch of a switch.
type Case struct {
	Condition string `json:"condition" yaml:"condition"`
	Nodes     []Node `json:"nodes" yaml:"nodes"`
}

// Branch is one independent node list of a parallel group.
type Branch struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes []Node `json:"nodes" yaml:"nodes"`
}

// Assembly is the parsed, immutable step graph.
type Assembly struct {
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Nodes   []Node `json:"nodes" yaml:"nodes"`
}

// NewAssembly builds an Assembly and assigns positional IDs to every node.
func NewAssembly(version string, nodes []Node) *Assembly {
	AssignIDs(nodes, "")
	return &Assembly{Version: version, Nodes: nodes}
}

// AssignIDs numbers the nodes of a list (recursively) under prefix.
func AssignIDs(nodes []Node, prefix string) {
	for i := range nodes {
		id := strconv.Itoa(i)
		if prefix != "" {
			id = prefix + "." + id
		}
		n := &nodes[i]
		n.ID = id

		switch n.Kind {
		case KindSwitch:
			for c := range n.Cases {
				AssignIDs(n.Cases[c].Nodes, id+".case"+strconv.Itoa(c))
			}
			AssignIDs(n.Otherwise, id+".otherwise")
		case KindSubFlow:
			AssignIDs(n.Nodes, id)
		case KindParallel:
			for b := range n.Branches {
				AssignIDs(n.Branches[b].Nodes, id+"."+n.Branches[b].Label(b))
			}
		}
	}
}

// Label returns the branch name, or a positional label when it has none.
func (b Branch) Label(index int) string {
	if b.Name != "" {
		return b.Name
	}
	return "b" + strconv.Itoa(index)
}

// Walk visits every node depth-first in declaration order.
// It stops at the first error returned by fn.
func (a *Assembly) Walk(fn func(*Node) error) error {
	return walk(a.Nodes, fn)
}

func walk(nodes []Node, fn func(*Node) error) error {
	for i := range nodes {
		n := &nodes[i]
		if err := fn(n); err != nil {
			return err
		}
		var err error
		switch n.Kind {
		case KindSwitch:
			for c := range n.Cases {
				if err = walk(n.Cases[c].Nodes, fn); err != nil {
					return err
				}
			}
			err = walk(n.Otherwise, fn)
		case KindSubFlow:
			err = walk(n.Nodes, fn)
		case KindParallel:
			for b := range n.Branches {
				if err = walk(n.Branches[b].Nodes, fn); err != nil {
					return err
				}
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// StepTypes returns the distinct task names referenced by the assembly, sorted.
func (a *Assembly) StepTypes() []string {
	seen := make(map[string]bool)
	_ = a.Walk(func(n *Node) error {
		if n.Kind == KindStep {
			seen[n.Type] = true
		}
		return nil
	})
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
