package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/aretw0/flow"
	"github.com/aretw0/flow/pkg/domain"
)

// Trace records which steps a run touched, for graph overlays.
type Trace struct {
	mu      sync.Mutex
	visited []string
	failed  string
}

// Hooks returns lifecycle hooks that feed the trace.
func (t *Trace) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepDone: func(_ context.Context, e *domain.StepEvent) {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.visited = append(t.visited, e.StepID)
			if e.Err != nil && t.failed == "" {
				t.failed = e.StepID
			}
		},
	}
}

// Visited returns the finished step IDs in completion order.
func (t *Trace) Visited() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.visited...)
}

// Failed returns the first step that failed, if any.
func (t *Trace) Failed() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}

// RunOnce executes the engine against a Context whose message is the JSON
// document in message. An empty message starts from {}.
func RunOnce(ctx context.Context, engine *flow.Engine, message []byte) (*domain.Context, error) {
	data := domain.NewContext()

	if len(bytes.TrimSpace(message)) > 0 {
		var msg any
		if err := json.Unmarshal(message, &msg); err != nil {
			return nil, fmt.Errorf("invalid message: %w", err)
		}
		data.Set(domain.KeyMessage, msg, true)
	}

	return data, engine.Execute(ctx, data)
}

// WriteContext prints the Context as indented JSON.
func WriteContext(w io.Writer, data *domain.Context) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data.Snapshot())
}
