package uirender

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capkit/capkit/capability"
	"github.com/capkit/capkit/internal/runtime"
)

func render(t *testing.T, root ViewNode) Output {
	t.Helper()
	conf := DefaultConfig()
	out, err := Process(context.Background(), &runtime.Request{Payload: Input{Root: root}}, &conf)
	require.NoError(t, err)
	return out.(Output)
}

func TestProcess_FlattensPreorder(t *testing.T) {
	out := render(t, ViewNode{
		Kind: "stack",
		Children: []ViewNode{
			{Kind: "text"},
			{Kind: "row", Children: []ViewNode{
				{Kind: "image"},
				{Kind: "button"},
			}},
		},
	})

	var kinds []string
	for _, op := range out.Ops {
		kinds = append(kinds, op.Kind)
	}
	assert.Equal(t, []string{"stack", "text", "row", "image", "button"}, kinds)
	assert.Equal(t, 5, out.NodeCount)
	assert.Equal(t, 2, out.MaxDepth)
}

func TestProcess_DepthTracking(t *testing.T) {
	out := render(t, ViewNode{Kind: "root", Children: []ViewNode{
		{Kind: "a", Children: []ViewNode{
			{Kind: "b", Children: []ViewNode{
				{Kind: "c"},
			}},
		}},
	}})

	assert.Equal(t, 3, out.MaxDepth)
	assert.Equal(t, 0, out.Ops[0].Depth)
	assert.Equal(t, 3, out.Ops[3].Depth)
}

func TestProcess_SingleNode(t *testing.T) {
	out := render(t, ViewNode{Kind: "text"})
	assert.Equal(t, 1, out.NodeCount)
	assert.Equal(t, 0, out.MaxDepth)
}

func TestProcess_MissingKind(t *testing.T) {
	conf := DefaultConfig()
	_, err := Process(context.Background(), &runtime.Request{Payload: Input{}}, &conf)
	assert.Error(t, err)
}

func TestProcess_WrongPayloadType(t *testing.T) {
	conf := DefaultConfig()
	_, err := Process(context.Background(), &runtime.Request{Payload: []int{1}}, &conf)
	assert.Error(t, err)
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conf := DefaultConfig()
	_, err := Process(ctx, &runtime.Request{Payload: Input{Root: ViewNode{Kind: "stack"}}}, &conf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildRegistered(t *testing.T) {
	assert.True(t, capability.DefaultRegistry.Has(Name))
}
