package ports

import "context"

// AssemblyLoader defines how the engine retrieves the assembly document.
// This allows the storage layer (File, Redis, Loam, Memory) to be decoupled.
type AssemblyLoader interface {
	// Load returns the raw document (YAML or JSON) which the compiler will parse.
	Load(ctx context.Context) ([]byte, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying document changes.
	// It abstracts away the specific event details, signaling only that a reload is required.
	// The channel is closed when ctx ends.
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// LoaderFunc adapts a function to the AssemblyLoader interface.
type LoaderFunc func(ctx context.Context) ([]byte, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) ([]byte, error) {
	return f(ctx)
}
