package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/flow/pkg/adapters/memory"
	contract "github.com/aretw0/flow/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = "assembly:\n  execute:\n    - log: {message: hi}\n"

func TestLoader_Contract(t *testing.T) {
	loader := memory.NewLoader(doc)
	contract.AssemblyLoaderContractTest(t, loader, []byte(doc))
}

func TestLoader_WatchContract(t *testing.T) {
	loader := memory.NewLoader(doc)
	contract.WatchableContractTest(t, loader, func() {
		loader.Update([]byte("assembly:\n  execute: []\n"))
	})
}

func TestLoader_Update(t *testing.T) {
	loader := memory.NewLoader(doc)
	loader.Update([]byte("v2"))

	got, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))

	// Callers cannot mutate the stored document through the returned slice.
	got[0] = 'x'
	again, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v2", string(again))
}

func TestLoader_Errors(t *testing.T) {
	_, err := memory.NewLoader("").Load(context.Background())
	assert.ErrorIs(t, err, memory.ErrEmptyDocument)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = memory.NewLoader(doc).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
