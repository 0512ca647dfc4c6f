package gpu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capkit/capkit/capability"
	"github.com/capkit/capkit/internal/runtime"
)

func batch(t *testing.T, draws []Draw) Output {
	t.Helper()
	conf := DefaultConfig()
	out, err := Process(context.Background(), &runtime.Request{Payload: Input{Draws: draws}}, &conf)
	require.NoError(t, err)
	return out.(Output)
}

func TestProcess_CoalescesByPipeline(t *testing.T) {
	out := batch(t, []Draw{
		{PipelineID: "sprites", Vertices: 100, Instances: 10},
		{PipelineID: "text", Vertices: 50, Instances: 5},
		{PipelineID: "sprites", Vertices: 200, Instances: 20},
	})

	require.Len(t, out.Batches, 2)
	assert.Equal(t, 2, out.DrawCalls)
	assert.Equal(t, 350, out.TotalVertices)

	// Batches come out in sorted pipeline order.
	assert.Equal(t, "sprites", out.Batches[0].PipelineID)
	assert.Equal(t, 300, out.Batches[0].Vertices)
	assert.Equal(t, 30, out.Batches[0].Instances)
	assert.Equal(t, "text", out.Batches[1].PipelineID)
}

func TestProcess_SplitsOversizedBatches(t *testing.T) {
	out := batch(t, []Draw{
		{PipelineID: "particles", Vertices: 10, Instances: 800},
		{PipelineID: "particles", Vertices: 10, Instances: 800},
	})

	require.Len(t, out.Batches, 2, "instances beyond the per-call cap split into a new batch")
	assert.Equal(t, 800, out.Batches[0].Instances)
	assert.Equal(t, 800, out.Batches[1].Instances)
}

func TestProcess_DefaultsZeroInstancesToOne(t *testing.T) {
	out := batch(t, []Draw{{PipelineID: "ui", Vertices: 12}})

	require.Len(t, out.Batches, 1)
	assert.Equal(t, 1, out.Batches[0].Instances)
}

func TestProcess_EmptyInput(t *testing.T) {
	out := batch(t, nil)
	assert.Zero(t, out.DrawCalls)
	assert.Empty(t, out.Batches)
}

func TestProcess_WrongPayloadType(t *testing.T) {
	conf := DefaultConfig()
	_, err := Process(context.Background(), &runtime.Request{Payload: "draws"}, &conf)
	assert.Error(t, err)
}

func TestBuildRegistered(t *testing.T) {
	assert.True(t, capability.DefaultRegistry.Has(Name))
}
