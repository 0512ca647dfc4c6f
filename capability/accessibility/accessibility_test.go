package accessibility

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capkit/capkit/capability"
	"github.com/capkit/capkit/internal/runtime"
)

func audit(t *testing.T, elements []Element) Output {
	t.Helper()
	conf := DefaultConfig()
	out, err := Process(context.Background(), &runtime.Request{Payload: Input{Elements: elements}}, &conf)
	require.NoError(t, err)
	return out.(Output)
}

func TestProcess_CleanElementsPass(t *testing.T) {
	out := audit(t, []Element{
		{ID: "e1", Role: "button", Label: "Save", ContrastRatio: 7},
		{ID: "e2", Role: "heading", Label: "Settings", ContrastRatio: 12},
	})

	assert.True(t, out.Passed)
	assert.Empty(t, out.Findings)
	assert.Equal(t, 2, out.Audited)
}

func TestProcess_MissingLabel(t *testing.T) {
	out := audit(t, []Element{{ID: "e1", Role: "button", ContrastRatio: 7}})

	require.Len(t, out.Findings, 1)
	assert.Equal(t, RuleMissingLabel, out.Findings[0].Rule)
	assert.False(t, out.Passed)
}

func TestProcess_ImagesExemptFromLabels(t *testing.T) {
	out := audit(t, []Element{{ID: "e1", Role: "image"}})
	assert.True(t, out.Passed)
}

func TestProcess_LowContrast(t *testing.T) {
	out := audit(t, []Element{{ID: "e1", Role: "text", Label: "Body", ContrastRatio: 2.1}})

	require.Len(t, out.Findings, 1)
	assert.Equal(t, RuleLowContrast, out.Findings[0].Rule)
}

func TestProcess_UnknownRole(t *testing.T) {
	out := audit(t, []Element{{ID: "e1", Role: "blinker", Label: "What"}})

	require.Len(t, out.Findings, 1)
	assert.Equal(t, RuleUnknownRole, out.Findings[0].Rule)
	assert.Contains(t, out.Findings[0].Detail, "blinker")
}

func TestProcess_MultipleFindingsPerElement(t *testing.T) {
	out := audit(t, []Element{{ID: "e1", Role: "blinker", ContrastRatio: 1.5}})
	assert.Len(t, out.Findings, 3)
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conf := DefaultConfig()
	_, err := Process(ctx, &runtime.Request{Payload: Input{Elements: []Element{{ID: "e1", Role: "button"}}}}, &conf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildRegistered(t *testing.T) {
	assert.True(t, capability.DefaultRegistry.Has(Name))
}
