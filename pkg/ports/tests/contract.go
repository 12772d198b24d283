package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/flow/pkg/ports"
)

// AssemblyLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.AssemblyLoader.
func AssemblyLoaderContractTest(t *testing.T, loader ports.AssemblyLoader, expected []byte) {
	t.Helper()

	t.Run("Load_Success", func(t *testing.T) {
		content, err := loader.Load(context.Background())
		if err != nil {
			t.Fatalf("unexpected error loading assembly: %v", err)
		}
		if string(content) != string(expected) {
			t.Errorf("content mismatch. got %q, want %q", content, expected)
		}
	})

	t.Run("Load_Repeatable", func(t *testing.T) {
		first, err := loader.Load(context.Background())
		if err != nil {
			t.Fatalf("unexpected error loading assembly: %v", err)
		}
		second, err := loader.Load(context.Background())
		if err != nil {
			t.Fatalf("unexpected error loading assembly: %v", err)
		}
		if string(first) != string(second) {
			t.Errorf("consecutive loads differ: %q vs %q", first, second)
		}
	})
}

// WatchableContractTest verifies that a ports.Watchable signals after trigger
// is called and closes its channel once the context ends.
func WatchableContractTest(t *testing.T, w ports.Watchable, trigger func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := w.Watch(ctx)
	if err != nil {
		t.Fatalf("unexpected error starting watch: %v", err)
	}

	t.Run("Watch_Signal", func(t *testing.T) {
		trigger()
		select {
		case _, ok := <-ch:
			if !ok {
				t.Fatal("watch channel closed before signaling")
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no change signal received")
		}
	})

	t.Run("Watch_ClosedOnCancel", func(t *testing.T) {
		cancel()
		deadline := time.After(5 * time.Second)
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return
				}
			case <-deadline:
				t.Fatal("watch channel not closed after cancel")
			}
		}
	})
}
