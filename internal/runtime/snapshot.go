package runtime

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/flow/pkg/domain"
	"github.com/aretw0/flow/pkg/registry"
	"github.com/aretw0/flow/pkg/resolver"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/mohae/deepcopy"
)

// Snapshot is an immutable, validated assembly bound to a task registry.
// Many flows may run against the same Snapshot concurrently.
type Snapshot struct {
	assembly   *domain.Assembly
	registry   *registry.Registry
	resolver   resolver.Resolver
	predicates map[string]*vm.Program
	compiledAt time.Time
}

// CompileOption configures a Snapshot.
type CompileOption func(*Snapshot)

// WithResolver sets the parameter resolver used by flows of this snapshot.
func WithResolver(r resolver.Resolver) CompileOption {
	return func(s *Snapshot) {
		s.resolver = r
	}
}

// WithoutResolver disables parameter resolution: raw params reach the tasks.
func WithoutResolver() CompileOption {
	return func(s *Snapshot) {
		s.resolver = nil
	}
}

// Compile validates asm against reg and prepares it for execution.
// The assembly is copied, so later changes by the caller are not observed.
// Every problem is reported as a *domain.DefinitionError.
func Compile(asm *domain.Assembly, reg *registry.Registry, opts ...CompileOption) (*Snapshot, error) {
	if asm == nil {
		return nil, &domain.DefinitionError{Reason: "assembly is nil"}
	}
	if reg == nil {
		return nil, &domain.DefinitionError{Reason: "task registry is nil"}
	}

	clone := deepcopy.Copy(*asm).(domain.Assembly)
	domain.AssignIDs(clone.Nodes, "")

	s := &Snapshot{
		assembly:   &clone,
		registry:   reg,
		resolver:   resolver.New(),
		predicates: make(map[string]*vm.Program),
		compiledAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := clone.Walk(s.validate); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Snapshot) validate(n *domain.Node) error {
	switch n.Kind {
	case domain.KindStep:
		if n.Type == "" {
			return &domain.DefinitionError{Path: n.ID, Reason: "step has no task type"}
		}
		if !s.registry.Has(n.Type) {
			return &domain.DefinitionError{
				Path:   n.ID,
				Reason: fmt.Sprintf("unknown task type %q", n.Type),
				Err:    domain.ErrTaskNotFound,
			}
		}
	case domain.KindSwitch:
		if len(n.Cases) == 0 {
			return &domain.DefinitionError{Path: n.ID, Reason: "switch has no conditional case"}
		}
		for i, c := range n.Cases {
			key := caseKey(n.ID, i)
			prog, err := expr.Compile(c.Condition, expr.AsBool(), expr.AllowUndefinedVariables())
			if err != nil {
				return &domain.DefinitionError{Path: key, Reason: fmt.Sprintf("invalid condition %q", c.Condition), Err: err}
			}
			s.predicates[key] = prog
		}
	case domain.KindSubFlow:
	case domain.KindParallel:
		seen := make(map[string]bool, len(n.Branches))
		for i, b := range n.Branches {
			label := b.Label(i)
			if seen[label] {
				return &domain.DefinitionError{Path: n.ID, Reason: fmt.Sprintf("duplicate branch %q", label)}
			}
			seen[label] = true
		}
	default:
		return &domain.DefinitionError{Path: n.ID, Reason: fmt.Sprintf("unknown node kind %q", n.Kind)}
	}
	return nil
}

// Assembly returns the compiled assembly. It must not be modified.
func (s *Snapshot) Assembly() *domain.Assembly { return s.assembly }

// Registry returns the task registry the snapshot was validated against.
func (s *Snapshot) Registry() *registry.Registry { return s.registry }

// Version returns the assembly document version.
func (s *Snapshot) Version() string { return s.assembly.Version }

// CompiledAt returns when the snapshot was built.
func (s *Snapshot) CompiledAt() time.Time { return s.compiledAt }

func caseKey(nodeID string, index int) string {
	return nodeID + ".case" + strconv.Itoa(index)
}
