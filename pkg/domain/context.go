package domain

import (
	"strconv"
	"strings"
	"sync"
)

const (
	// PathSeparator splits Context paths into segments.
	PathSeparator = "."
	// KeyMessage is the distinguished entry holding the request/response payload.
	KeyMessage = "message"
)

// Context is the per-request state shared by every node of a flow.
// Values are addressed by dotted paths ("message.user.name"); nested
// containers are map[string]any, and numeric segments index []any.
//
// Copies (NewContextFrom, Snapshot, Fork) duplicate the map[string]any and
// []any containers only; every other value is shared by reference.
//
// A Context is created once per request and discarded after completion.
// Its lock only protects memory; ordering between writers is the engine's job.
type Context struct {
	mu   sync.RWMutex
	data map[string]any
	// base is the state at Fork time, used to compute the writes to merge back.
	base map[string]any
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{data: make(map[string]any)}
}

// NewContextFrom creates a Context holding a copy of the containers of data.
func NewContextFrom(data map[string]any) *Context {
	c := NewContext()
	if data != nil {
		c.data = copyMap(data)
	}
	return c
}

// Get returns the value at path. Missing intermediate segments yield
// (nil, false) rather than an error.
func (c *Context) Get(path string) (any, bool) {
	segs, ok := splitPath(path)
	if !ok {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lookup(c.data, segs)
}

// Has reports whether path holds a value (a nil value counts).
func (c *Context) Has(path string) bool {
	_, ok := c.Get(path)
	return ok
}

// Set stores value at path, creating intermediate maps as needed.
// When overwrite is false and the path already holds a value, Set is a no-op.
// A numeric segment addressing a []any replaces that element in place; an
// index out of range (or a non-numeric segment) leaves the list untouched.
func (c *Context) Set(path string, value any, overwrite bool) {
	segs, ok := splitPath(path)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	assign(c.data, segs, value, overwrite)
}

// Delete removes the value at path. Missing paths are ignored.
func (c *Context) Delete(path string) {
	segs, ok := splitPath(path)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	remove(c.data, segs)
}

// Message returns the "message" entry.
func (c *Context) Message() any {
	v, _ := c.Get(KeyMessage)
	return v
}

// Snapshot returns a copy of the whole Context.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyMap(c.data)
}

// Fork returns an isolated copy of the Context. Writes to the fork are not
// visible to c until Merge is called.
func (c *Context) Fork() *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Context{
		data: copyMap(c.data),
		base: copyMap(c.data),
	}
}

// Merge replays the writes made on a fork (relative to its fork point) into c.
func (c *Context) Merge(fork *Context) {
	fork.mu.RLock()
	changes := Diff(fork.base, fork.data)
	fork.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range changes {
		if ch.Deleted {
			remove(c.data, ch.Segments)
			continue
		}
		assign(c.data, ch.Segments, ch.Value, true)
	}
}

func splitPath(path string) ([]string, bool) {
	if path == "" {
		return nil, false
	}
	segs := strings.Split(path, PathSeparator)
	for _, s := range segs {
		if s == "" {
			return nil, false
		}
	}
	return segs, true
}

func lookup(root map[string]any, segs []string) (any, bool) {
	var cur any = root
	for _, seg := range segs {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, ok := index(node, seg)
			if !ok {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

func assign(root map[string]any, segs []string, value any, overwrite bool) {
	var cur any = root
	for n, seg := range segs {
		last := n == len(segs)-1
		switch node := cur.(type) {
		case map[string]any:
			next, exists := node[seg]
			if last {
				if exists && !overwrite {
					return
				}
				node[seg] = value
				return
			}
			if !isContainer(next) {
				if exists && !overwrite {
					return
				}
				next = make(map[string]any)
				node[seg] = next
			}
			cur = next
		case []any:
			i, ok := index(node, seg)
			if !ok {
				return
			}
			if last {
				if overwrite {
					node[i] = value
				}
				return
			}
			if !isContainer(node[i]) {
				if !overwrite {
					return
				}
				node[i] = make(map[string]any)
			}
			cur = node[i]
		default:
			return
		}
	}
}

func remove(root map[string]any, segs []string) {
	var cur any = root
	for _, seg := range segs[:len(segs)-1] {
		switch node := cur.(type) {
		case map[string]any:
			cur = node[seg]
		case []any:
			i, ok := index(node, seg)
			if !ok {
				return
			}
			cur = node[i]
		default:
			return
		}
	}
	if m, ok := cur.(map[string]any); ok {
		delete(m, segs[len(segs)-1])
	}
}

func index(list []any, seg string) (int, bool) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 || i >= len(list) {
		return 0, false
	}
	return i, true
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

// copyValue duplicates JSON-like containers and shares every other value.
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	}
	return v
}
