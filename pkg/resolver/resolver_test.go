package resolver_test

import (
	"testing"

	"github.com/aretw0/flow/pkg/domain"
	"github.com/aretw0/flow/pkg/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newData() *domain.Context {
	return domain.NewContextFrom(map[string]any{
		"message": map[string]any{
			"user":  "bob",
			"age":   42,
			"roles": []any{"admin", "dev"},
		},
		"empty": nil,
	})
}

func TestPlaceholder_Resolve(t *testing.T) {
	r := resolver.New()
	data := newData()

	tests := []struct {
		name string
		raw  any
		want any
	}{
		{"whole placeholder", "{{message.user}}", "bob"},
		{"whitespace inside delimiters", "{{ message.user }}", "bob"},
		{"typed value kept", "{{message.age}}", 42},
		{"composite value kept", "{{message.roles}}", []any{"admin", "dev"}},
		{"embedded placeholder", "hello {{message.user}}!", "hello bob!"},
		{"multiple placeholders", "{{message.user}} is {{message.age}}", "bob is 42"},
		{"embedded composite as json", "roles={{message.roles}}", `roles=["admin","dev"]`},
		{"embedded nil as empty", "[{{empty}}]", "[]"},
		{"literal string", "plain", "plain"},
		{"stray closing delimiter", "a }} b", "a }} b"},
		{"non string literal", 7, 7},
		{"list index", "{{message.roles.1}}", "dev"},
		{
			"nested map",
			map[string]any{"to": "{{message.user}}", "meta": map[string]any{"n": "{{message.age}}"}},
			map[string]any{"to": "bob", "meta": map[string]any{"n": 42}},
		},
		{
			"list",
			[]any{"{{message.user}}", 1},
			[]any{"bob", 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.raw, data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlaceholder_DoesNotMutateRaw(t *testing.T) {
	raw := map[string]any{"to": "{{message.user}}"}
	_, err := resolver.New().Resolve(raw, newData())
	require.NoError(t, err)
	assert.Equal(t, "{{message.user}}", raw["to"])
}

func TestPlaceholder_Errors(t *testing.T) {
	r := resolver.New()
	data := newData()

	tests := []struct {
		name    string
		raw     any
		wantErr error
	}{
		{"missing path", "{{message.missing}}", domain.ErrUnresolvedPath},
		{"missing intermediate", "{{nope.deeper}}", domain.ErrUnresolvedPath},
		{"missing embedded", "hi {{nope}}", domain.ErrUnresolvedPath},
		{"unterminated", "hi {{message.user", domain.ErrMalformedPlaceholder},
		{"empty placeholder", "{{ }}", domain.ErrMalformedPlaceholder},
		{"space in path", "{{message user}}", domain.ErrMalformedPlaceholder},
		{"nested in map", map[string]any{"a": "{{nope}}"}, domain.ErrUnresolvedPath},
		{"nested in list", []any{"{{"}, domain.ErrMalformedPlaceholder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.raw, data)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPlaceholder_ReflectsLatestContext(t *testing.T) {
	r := resolver.New()
	data := newData()

	v, err := r.Resolve("{{message.user}}", data)
	require.NoError(t, err)
	assert.Equal(t, "bob", v)

	data.Set("message.user", "alice", true)
	v, err = r.Resolve("{{message.user}}", data)
	require.NoError(t, err)
	assert.Equal(t, "alice", v)
}

func TestFunc(t *testing.T) {
	var r resolver.Resolver = resolver.Func(func(raw any, _ *domain.Context) (any, error) {
		return "x", nil
	})
	v, err := r.Resolve("anything", nil)
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}
