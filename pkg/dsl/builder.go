package dsl

import (
	"fmt"

	"github.com/aretw0/flow/internal/compiler"
	"github.com/aretw0/flow/pkg/adapters/memory"
	"github.com/aretw0/flow/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Builder manages the assembly construction.
type Builder struct {
	List
	version string
}

// New creates a new assembly builder.
func New(version string) *Builder {
	return &Builder{version: version}
}

// List is an ordered sequence of nodes (the body of an assembly, a case,
// a subflow or a branch).
type List struct {
	items []item
}

// item renders one node into its document form.
type item interface {
	document() any
}

// Step appends a step dispatching the named task.
func (l *List) Step(task string) *StepBuilder {
	s := &StepBuilder{task: task, params: map[string]any{}}
	l.items = append(l.items, s)
	return s
}

// Switch appends a conditional node configured by fn.
func (l *List) Switch(fn func(*SwitchBuilder)) *SwitchBuilder {
	s := &SwitchBuilder{}
	fn(s)
	l.items = append(l.items, s)
	return s
}

// SubFlow appends a nested list sharing the parent context.
func (l *List) SubFlow(fn func(*List)) *SubFlowBuilder {
	s := &SubFlowBuilder{}
	fn(&s.body)
	l.items = append(l.items, s)
	return s
}

// Parallel appends a parallel group configured by fn.
func (l *List) Parallel(fn func(*ParallelBuilder)) *ParallelBuilder {
	p := &ParallelBuilder{}
	fn(p)
	l.items = append(l.items, p)
	return p
}

func (l *List) document() []any {
	out := make([]any, 0, len(l.items))
	for _, it := range l.items {
		out = append(out, it.document())
	}
	return out
}

// StepBuilder configures a step.
type StepBuilder struct {
	task   string
	title  string
	params map[string]any
}

// Title sets the step title.
func (s *StepBuilder) Title(title string) *StepBuilder {
	s.title = title
	return s
}

// Param sets one parameter. Strings may contain {{path}} placeholders.
func (s *StepBuilder) Param(key string, value any) *StepBuilder {
	s.params[key] = value
	return s
}

// Params merges several parameters.
func (s *StepBuilder) Params(params map[string]any) *StepBuilder {
	for k, v := range params {
		s.params[k] = v
	}
	return s
}

func (s *StepBuilder) document() any {
	body := make(map[string]any, len(s.params)+1)
	for k, v := range s.params {
		body[k] = v
	}
	if s.title != "" {
		body[domain.KeyTitle] = s.title
	}
	return map[string]any{s.task: body}
}

// SwitchBuilder configures the cases of a switch.
type SwitchBuilder struct {
	title     string
	cases     []caseBuilder
	otherwise *List
}

type caseBuilder struct {
	condition string
	body      List
}

// Title sets the switch title.
func (s *SwitchBuilder) Title(title string) *SwitchBuilder {
	s.title = title
	return s
}

// Case adds a guarded branch. Cases are evaluated in the order added.
func (s *SwitchBuilder) Case(condition string, fn func(*List)) *SwitchBuilder {
	c := caseBuilder{condition: condition}
	fn(&c.body)
	s.cases = append(s.cases, c)
	return s
}

// Otherwise sets the branch run when no case matches.
func (s *SwitchBuilder) Otherwise(fn func(*List)) *SwitchBuilder {
	s.otherwise = &List{}
	fn(s.otherwise)
	return s
}

func (s *SwitchBuilder) document() any {
	cases := make([]any, 0, len(s.cases)+1)
	for _, c := range s.cases {
		cases = append(cases, map[string]any{
			domain.KeyCondition: c.condition,
			domain.KeyExecute:   c.body.document(),
		})
	}
	if s.otherwise != nil {
		cases = append(cases, map[string]any{domain.KeyOtherwise: s.otherwise.document()})
	}
	body := map[string]any{domain.KeyCase: cases}
	if s.title != "" {
		body[domain.KeyTitle] = s.title
	}
	return map[string]any{domain.KeySwitch: body}
}

// SubFlowBuilder configures a subflow.
type SubFlowBuilder struct {
	title string
	body  List
}

// Title sets the subflow title.
func (s *SubFlowBuilder) Title(title string) *SubFlowBuilder {
	s.title = title
	return s
}

func (s *SubFlowBuilder) document() any {
	body := map[string]any{domain.KeyExecute: s.body.document()}
	if s.title != "" {
		body[domain.KeyTitle] = s.title
	}
	return map[string]any{domain.KeySubFlow: body}
}

// ParallelBuilder configures the branches of a parallel group.
type ParallelBuilder struct {
	title    string
	branches []branchBuilder
}

type branchBuilder struct {
	name string
	body List
}

// Title sets the group title.
func (p *ParallelBuilder) Title(title string) *ParallelBuilder {
	p.title = title
	return p
}

// Branch adds a named branch. An empty name gets a positional label.
func (p *ParallelBuilder) Branch(name string, fn func(*List)) *ParallelBuilder {
	b := branchBuilder{name: name}
	fn(&b.body)
	p.branches = append(p.branches, b)
	return p
}

func (p *ParallelBuilder) document() any {
	branches := make([]any, 0, len(p.branches))
	for _, b := range p.branches {
		branch := map[string]any{domain.KeyExecute: b.body.document()}
		if b.name != "" {
			branch[domain.KeyName] = b.name
		}
		branches = append(branches, branch)
	}
	body := map[string]any{domain.KeyBranches: branches}
	if p.title != "" {
		body[domain.KeyTitle] = p.title
	}
	return map[string]any{domain.KeyParallel: body}
}

// Document renders the assembly as YAML.
func (b *Builder) Document() ([]byte, error) {
	doc := map[string]any{
		domain.KeyAssembly: map[string]any{domain.KeyExecute: b.List.document()},
	}
	if b.version != "" {
		doc["version"] = b.version
	}
	return yaml.Marshal(doc)
}

// Assembly renders and parses the assembly.
func (b *Builder) Assembly() (*domain.Assembly, error) {
	data, err := b.Document()
	if err != nil {
		return nil, err
	}
	return compiler.NewParser().Parse(data)
}

// Build validates the assembly and serves it from a memory loader.
func (b *Builder) Build() (*memory.Loader, error) {
	data, err := b.Document()
	if err != nil {
		return nil, fmt.Errorf("failed to render assembly: %w", err)
	}
	if _, err := compiler.NewParser().Parse(data); err != nil {
		return nil, fmt.Errorf("failed to build assembly: %w", err)
	}
	return memory.NewFromBytes(data), nil
}
