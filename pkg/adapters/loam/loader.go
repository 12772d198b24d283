package loam

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"
)

// DefaultWatchPattern matches every document format Loam can parse.
const DefaultWatchPattern = "**/*.{md,json,yaml,yml}"

// Loader adapts a Loam repository to the ports.AssemblyLoader interface.
// The assembly is read from a single document identified by ID.
type Loader struct {
	Repo *loam.TypedRepository[AssemblyDocument]
	ID   string
}

// New creates a new Loam adapter reading the document id.
func New(repo *loam.TypedRepository[AssemblyDocument], id string) *Loader {
	return &Loader{
		Repo: repo,
		ID:   id,
	}
}

// Open initializes a read-only, strict Loam repository at dir and returns a
// Loader for the document id.
func Open(dir, id string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	// Strict mode keeps numbers as json.Number across formats; the engine
	// never writes, so the repository is opened read-only.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[AssemblyDocument](repo), id), nil
}

// Load fetches the document and re-encodes it as JSON for the compiler.
func (l *Loader) Load(ctx context.Context) ([]byte, error) {
	doc, err := l.Repo.Get(ctx, l.ID)
	if err != nil {
		return nil, fmt.Errorf("loam get failed for %s: %w", l.ID, err)
	}
	if doc.Data.Assembly == nil {
		return nil, fmt.Errorf("loam document %s has no assembly", l.ID)
	}

	bytes, err := json.Marshal(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal assembly document: %w", err)
	}
	return bytes, nil
}

// Watch implements ports.Watchable. Only changes to the assembly document
// are signaled.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := l.Repo.Watch(ctx, DefaultWatchPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				if trimExtension(evt.ID) != trimExtension(l.ID) {
					continue
				}
				select {
				case ch <- struct{}{}:
				default:
					// A reload is already pending.
				}
			}
		}
	}()
	return ch, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
