package touch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capkit/capkit/capability"
	"github.com/capkit/capkit/internal/runtime"
)

func classify(t *testing.T, points []Point) Output {
	t.Helper()
	conf := DefaultConfig()
	out, err := Process(context.Background(), &runtime.Request{Payload: Input{Points: points}}, &conf)
	require.NoError(t, err)
	return out.(Output)
}

func TestProcess_Tap(t *testing.T) {
	out := classify(t, []Point{
		{X: 100, Y: 100, TimestampMs: 0},
		{X: 102, Y: 101, TimestampMs: 80},
	})
	assert.Equal(t, GestureTap, out.Gesture)
}

func TestProcess_LongPress(t *testing.T) {
	out := classify(t, []Point{
		{X: 100, Y: 100, TimestampMs: 0},
		{X: 101, Y: 100, TimestampMs: 700},
	})
	assert.Equal(t, GestureLongPress, out.Gesture)
}

func TestProcess_Swipe(t *testing.T) {
	out := classify(t, []Point{
		{X: 100, Y: 100, TimestampMs: 0},
		{X: 150, Y: 110, TimestampMs: 120},
		{X: 220, Y: 120, TimestampMs: 250},
	})
	assert.Equal(t, GestureSwipe, out.Gesture)
	assert.Greater(t, out.Distance, swipeMinDistance)
}

func TestProcess_AmbiguousDistance(t *testing.T) {
	out := classify(t, []Point{
		{X: 100, Y: 100, TimestampMs: 0},
		{X: 120, Y: 100, TimestampMs: 100},
	})
	assert.Equal(t, GestureUnknown, out.Gesture)
}

func TestProcess_EmptyPoints(t *testing.T) {
	conf := DefaultConfig()
	_, err := Process(context.Background(), &runtime.Request{Payload: Input{}}, &conf)
	assert.Error(t, err)
}

func TestProcess_WrongPayloadType(t *testing.T) {
	conf := DefaultConfig()
	_, err := Process(context.Background(), &runtime.Request{Payload: "points"}, &conf)
	assert.Error(t, err)
}

func TestBuildRegistered(t *testing.T) {
	assert.True(t, capability.DefaultRegistry.Has(Name))
}
