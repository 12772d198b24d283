package compiler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/aretw0/flow/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Parser is responsible for converting a raw assembly document into a domain.Assembly.
// YAML and JSON documents are both accepted.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

type document struct {
	Version  string `mapstructure:"version"`
	Assembly struct {
		Execute []any `mapstructure:"execute"`
	} `mapstructure:"assembly"`
}

type switchSpec struct {
	Title string           `mapstructure:"title"`
	Case  []map[string]any `mapstructure:"case"`
}

type caseSpec struct {
	Condition string `mapstructure:"condition"`
	Execute   []any  `mapstructure:"execute"`
	Otherwise []any  `mapstructure:"otherwise"`
}

type subFlowSpec struct {
	Title   string `mapstructure:"title"`
	Execute []any  `mapstructure:"execute"`
}

type parallelSpec struct {
	Title    string       `mapstructure:"title"`
	Branches []branchSpec `mapstructure:"branches"`
}

type branchSpec struct {
	Name    string `mapstructure:"name"`
	Execute []any  `mapstructure:"execute"`
}

// Parse decodes the document and builds the node tree.
// Structural problems are reported as *domain.DefinitionError.
func (p *Parser) Parse(data []byte) (*domain.Assembly, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &domain.DefinitionError{Reason: "empty assembly document"}
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &domain.DefinitionError{Reason: "failed to parse assembly document", Err: err}
	}

	var doc document
	if err := decode(raw, &doc); err != nil {
		return nil, &domain.DefinitionError{Reason: "invalid assembly document", Err: err}
	}
	if _, ok := raw[domain.KeyAssembly]; !ok {
		return nil, &domain.DefinitionError{Reason: "missing \"assembly\" section"}
	}

	nodes, err := p.parseList(doc.Assembly.Execute, domain.KeyAssembly+"."+domain.KeyExecute)
	if err != nil {
		return nil, err
	}
	return domain.NewAssembly(doc.Version, nodes), nil
}

func (p *Parser) parseList(items []any, path string) ([]domain.Node, error) {
	nodes := make([]domain.Node, 0, len(items))
	for i, item := range items {
		node, err := p.parseNode(item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (p *Parser) parseNode(item any, path string) (domain.Node, error) {
	// Bare string shorthand: a step without params.
	if name, ok := item.(string); ok {
		if name == "" || isReserved(name) {
			return domain.Node{}, &domain.DefinitionError{Path: path, Reason: fmt.Sprintf("invalid step %q", name)}
		}
		return domain.Node{Kind: domain.KindStep, Type: name, Params: map[string]any{}}, nil
	}

	m, ok := item.(map[string]any)
	if !ok || len(m) != 1 {
		return domain.Node{}, &domain.DefinitionError{Path: path, Reason: "node must be a map with exactly one key"}
	}

	var key string
	var body any
	for k, v := range m {
		key, body = k, v
	}
	path += "." + key

	switch key {
	case domain.KeySwitch:
		return p.parseSwitch(body, path)
	case domain.KeySubFlow:
		return p.parseSubFlow(body, path)
	case domain.KeyParallel:
		return p.parseParallel(body, path)
	default:
		return p.parseStep(key, body, path)
	}
}

func (p *Parser) parseStep(name string, body any, path string) (domain.Node, error) {
	node := domain.Node{Kind: domain.KindStep, Type: strings.TrimSpace(name), Params: map[string]any{}}
	if node.Type == "" {
		return node, &domain.DefinitionError{Path: path, Reason: "step has no task type"}
	}
	if body == nil {
		return node, nil
	}
	params, ok := body.(map[string]any)
	if !ok {
		return node, &domain.DefinitionError{Path: path, Reason: fmt.Sprintf("step parameters must be a map, got %T", body)}
	}
	for k, v := range params {
		if k == domain.KeyTitle {
			title, ok := v.(string)
			if !ok {
				return node, &domain.DefinitionError{Path: path + "." + k, Reason: fmt.Sprintf("step title must be a string, got %T", v)}
			}
			node.Title = title
			continue
		}
		node.Params[k] = v
	}
	return node, nil
}

func (p *Parser) parseSwitch(body any, path string) (domain.Node, error) {
	node := domain.Node{Kind: domain.KindSwitch}

	var spec switchSpec
	if err := decode(body, &spec); err != nil {
		return node, &domain.DefinitionError{Path: path, Reason: "invalid switch", Err: err}
	}
	node.Title = spec.Title

	for i, rawCase := range spec.Case {
		casePath := fmt.Sprintf("%s.%s[%d]", path, domain.KeyCase, i)

		var c caseSpec
		if err := decode(rawCase, &c); err != nil {
			return node, &domain.DefinitionError{Path: casePath, Reason: "invalid case", Err: err}
		}

		if _, isDefault := rawCase[domain.KeyOtherwise]; isDefault {
			if len(rawCase) != 1 {
				return node, &domain.DefinitionError{Path: casePath, Reason: "otherwise cannot be combined with other keys"}
			}
			if i != len(spec.Case)-1 {
				return node, &domain.DefinitionError{Path: casePath, Reason: "otherwise must be the last case"}
			}
			nodes, err := p.parseList(c.Otherwise, casePath+"."+domain.KeyOtherwise)
			if err != nil {
				return node, err
			}
			node.Otherwise = nodes
			continue
		}

		if strings.TrimSpace(c.Condition) == "" {
			return node, &domain.DefinitionError{Path: casePath, Reason: "case has no condition"}
		}
		nodes, err := p.parseList(c.Execute, casePath+"."+domain.KeyExecute)
		if err != nil {
			return node, err
		}
		node.Cases = append(node.Cases, domain.Case{Condition: c.Condition, Nodes: nodes})
	}

	if len(node.Cases) == 0 {
		return node, &domain.DefinitionError{Path: path, Reason: "switch has no conditional case"}
	}
	return node, nil
}

func (p *Parser) parseSubFlow(body any, path string) (domain.Node, error) {
	node := domain.Node{Kind: domain.KindSubFlow}

	var spec subFlowSpec
	if err := decode(body, &spec); err != nil {
		return node, &domain.DefinitionError{Path: path, Reason: "invalid subflow", Err: err}
	}
	nodes, err := p.parseList(spec.Execute, path+"."+domain.KeyExecute)
	if err != nil {
		return node, err
	}
	node.Title = spec.Title
	node.Nodes = nodes
	return node, nil
}

func (p *Parser) parseParallel(body any, path string) (domain.Node, error) {
	node := domain.Node{Kind: domain.KindParallel}

	var spec parallelSpec
	if err := decode(body, &spec); err != nil {
		return node, &domain.DefinitionError{Path: path, Reason: "invalid parallel group", Err: err}
	}
	node.Title = spec.Title

	seen := make(map[string]bool, len(spec.Branches))
	for i, b := range spec.Branches {
		branchPath := fmt.Sprintf("%s.%s[%d]", path, domain.KeyBranches, i)
		if strings.Contains(b.Name, domain.PathSeparator) {
			return node, &domain.DefinitionError{Path: branchPath, Reason: fmt.Sprintf("branch name %q contains %q", b.Name, domain.PathSeparator)}
		}
		branch := domain.Branch{Name: b.Name}
		label := branch.Label(i)
		if seen[label] {
			return node, &domain.DefinitionError{Path: branchPath, Reason: fmt.Sprintf("duplicate branch %q", label)}
		}
		seen[label] = true

		nodes, err := p.parseList(b.Execute, branchPath+"."+domain.KeyExecute)
		if err != nil {
			return node, err
		}
		branch.Nodes = nodes
		node.Branches = append(node.Branches, branch)
	}
	return node, nil
}

func isReserved(key string) bool {
	switch key {
	case domain.KeySwitch, domain.KeySubFlow, domain.KeyParallel:
		return true
	}
	return false
}

func decode(input, target any) error {
	if input == nil {
		return fmt.Errorf("missing body")
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      target,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
