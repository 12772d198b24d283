package resolver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/flow/pkg/domain"
)

// Placeholder delimiters.
const (
	OpenDelim  = "{{"
	CloseDelim = "}}"
)

// Resolver turns a raw parameter value into a concrete value using the
// current Context. It is called once per parameter right before dispatch.
type Resolver interface {
	Resolve(raw any, data *domain.Context) (any, error)
}

// Func adapts a function to the Resolver interface.
type Func func(raw any, data *domain.Context) (any, error)

// Resolve calls f.
func (f Func) Resolve(raw any, data *domain.Context) (any, error) {
	return f(raw, data)
}

// Placeholder resolves "{{ path }}" expressions against the Context.
//
// A string made of exactly one placeholder resolves to the referenced value
// with its type preserved. Placeholders embedded in text are replaced by
// their string form. Maps and slices are resolved leaf by leaf into new
// containers; other values pass through unchanged.
type Placeholder struct{}

// New returns the default placeholder resolver.
func New() *Placeholder {
	return &Placeholder{}
}

// Resolve implements Resolver.
func (p *Placeholder) Resolve(raw any, data *domain.Context) (any, error) {
	switch v := raw.(type) {
	case string:
		return p.resolveString(v, data)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			r, err := p.Resolve(item, data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			r, err := p.Resolve(item, data)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = r
		}
		return out, nil
	default:
		return raw, nil
	}
}

func (p *Placeholder) resolveString(s string, data *domain.Context) (any, error) {
	if !strings.Contains(s, OpenDelim) {
		return s, nil
	}

	// Whole-value placeholder keeps the referenced type.
	if strings.HasPrefix(s, OpenDelim) && strings.Index(s, CloseDelim) == len(s)-len(CloseDelim) {
		path, err := parsePath(s[len(OpenDelim) : len(s)-len(CloseDelim)])
		if err != nil {
			return nil, err
		}
		return lookup(path, data)
	}

	var sb strings.Builder
	rest := s
	for {
		i := strings.Index(rest, OpenDelim)
		if i < 0 {
			sb.WriteString(rest)
			break
		}
		body := rest[i+len(OpenDelim):]
		j := strings.Index(body, CloseDelim)
		if j < 0 {
			return nil, fmt.Errorf("%w: unterminated %q in %q", domain.ErrMalformedPlaceholder, OpenDelim, s)
		}
		path, err := parsePath(body[:j])
		if err != nil {
			return nil, err
		}
		val, err := lookup(path, data)
		if err != nil {
			return nil, err
		}
		sb.WriteString(rest[:i])
		sb.WriteString(stringify(val))
		rest = body[j+len(CloseDelim):]
	}
	return sb.String(), nil
}

func parsePath(expr string) (string, error) {
	path := strings.TrimSpace(expr)
	if path == "" || strings.Contains(path, OpenDelim) || strings.ContainsAny(path, " \t\n") {
		return "", fmt.Errorf("%w: %q", domain.ErrMalformedPlaceholder, OpenDelim+expr+CloseDelim)
	}
	return path, nil
}

func lookup(path string, data *domain.Context) (any, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: %s (no context)", domain.ErrUnresolvedPath, path)
	}
	val, ok := data.Get(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnresolvedPath, path)
	}
	return val, nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
