package dsl_test

import (
	"context"
	"testing"

	"github.com/aretw0/flow/pkg/domain"
	"github.com/aretw0/flow/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Assembly(t *testing.T) {
	b := dsl.New("1.0.0")
	b.Step("set-variable").Title("remember").Param("name", "user").Param("value", "{{message.user}}")
	b.Switch(func(s *dsl.SwitchBuilder) {
		s.Case(`user == "bob"`, func(l *dsl.List) {
			l.Step("log").Param("message", "hi bob")
		})
		s.Otherwise(func(l *dsl.List) {
			l.Step("throw")
		})
	})
	b.SubFlow(func(l *dsl.List) {
		l.Step("log")
	}).Title("nested")
	b.Parallel(func(p *dsl.ParallelBuilder) {
		p.Branch("left", func(l *dsl.List) { l.Step("delay").Param("duration", "1ms") })
		p.Branch("", func(l *dsl.List) { l.Step("log") })
	})

	asm, err := b.Assembly()
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", asm.Version)
	require.Len(t, asm.Nodes, 4)

	step := asm.Nodes[0]
	assert.Equal(t, "set-variable", step.Type)
	assert.Equal(t, "remember", step.Title)
	assert.Equal(t, map[string]any{"name": "user", "value": "{{message.user}}"}, step.Params)

	sw := asm.Nodes[1]
	assert.Equal(t, domain.KindSwitch, sw.Kind)
	require.Len(t, sw.Cases, 1)
	assert.Equal(t, `user == "bob"`, sw.Cases[0].Condition)
	assert.Equal(t, "1.case0.0", sw.Cases[0].Nodes[0].ID)
	require.Len(t, sw.Otherwise, 1)
	assert.Equal(t, "throw", sw.Otherwise[0].Type)

	sub := asm.Nodes[2]
	assert.Equal(t, domain.KindSubFlow, sub.Kind)
	assert.Equal(t, "nested", sub.Title)

	par := asm.Nodes[3]
	require.Len(t, par.Branches, 2)
	assert.Equal(t, "3.left.0", par.Branches[0].Nodes[0].ID)
	assert.Equal(t, "3.b1.0", par.Branches[1].Nodes[0].ID)
}

func TestBuilder_Build(t *testing.T) {
	b := dsl.New("")
	b.Step("log")

	loader, err := b.Build()
	require.NoError(t, err)

	data, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(data), "log")
}

func TestBuilder_InvalidSwitch(t *testing.T) {
	b := dsl.New("")
	b.Switch(func(s *dsl.SwitchBuilder) {
		s.Otherwise(func(l *dsl.List) { l.Step("log") })
	})

	_, err := b.Build()
	var defErr *domain.DefinitionError
	assert.ErrorAs(t, err, &defErr)
}
