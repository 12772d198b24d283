package memory

import (
	"context"
	"errors"
	"sync"
)

// ErrEmptyDocument is returned by Load when no document has been set.
var ErrEmptyDocument = errors.New("memory loader: no document")

// Loader implements ports.AssemblyLoader and ports.Watchable using an in-memory document.
// Safe for concurrent use.
type Loader struct {
	mu   sync.RWMutex
	doc  []byte
	subs map[chan struct{}]struct{}
}

// NewLoader creates a new Loader holding doc (YAML or JSON).
func NewLoader(doc string) *Loader {
	return NewFromBytes([]byte(doc))
}

// NewFromBytes creates a new Loader from raw bytes. The slice is copied.
func NewFromBytes(doc []byte) *Loader {
	return &Loader{
		doc:  append([]byte(nil), doc...),
		subs: make(map[chan struct{}]struct{}),
	}
}

// Load returns a copy of the current document.
func (l *Loader) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.doc) == 0 {
		return nil, ErrEmptyDocument
	}
	return append([]byte(nil), l.doc...), nil
}

// Update replaces the document and signals every watcher.
func (l *Loader) Update(doc []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.doc = append([]byte(nil), doc...)
	for ch := range l.subs {
		// Coalesce: one pending signal is enough to trigger a reload.
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watch returns a channel signaled after each Update. It is closed when ctx ends.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.subs, ch)
		close(ch)
		l.mu.Unlock()
	}()
	return ch, nil
}
