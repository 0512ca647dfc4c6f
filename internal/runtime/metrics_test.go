package runtime

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/capkit/capkit/internal/runtime/errors"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	a := NewAggregator("test", prometheus.NewRegistry())
	require.NoError(t, a.Register())
	return a
}

func recordSuccess(a *Aggregator, d time.Duration, prio Priority) {
	a.Record(&Result{Success: true, ProcessingTime: d}, prio)
}

func TestAggregator_RegisterIdempotent(t *testing.T) {
	a := newTestAggregator(t)
	require.NoError(t, a.Register())
	require.NoError(t, a.Register())
}

func TestAggregator_SharedRegistererAdoptsCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := NewAggregator("first", reg)
	require.NoError(t, first.Register())
	second := NewAggregator("second", reg)
	require.NoError(t, second.Register())

	// Increments through the second aggregator must land in the collectors
	// the registry scrapes.
	second.RecordCacheHit()

	families, err := reg.Gather()
	require.NoError(t, err)

	var hits float64
	for _, fam := range families {
		if fam.GetName() != "capkit_capability_cache_hits_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "capability" && label.GetValue() == "second" {
					hits = m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 1.0, hits)
}

func TestAggregator_IncrementalMean(t *testing.T) {
	a := newTestAggregator(t)

	recordSuccess(a, 10*time.Millisecond, PriorityNormal)
	recordSuccess(a, 20*time.Millisecond, PriorityNormal)
	recordSuccess(a, 30*time.Millisecond, PriorityNormal)

	snap := a.Snapshot()
	assert.Equal(t, uint64(3), snap.Count)
	assert.InDelta(t, float64(20*time.Millisecond), float64(snap.MeanProcessingTime), float64(time.Microsecond))
}

func TestAggregator_BestAndWorst(t *testing.T) {
	a := newTestAggregator(t)

	recordSuccess(a, 25*time.Millisecond, PriorityNormal)
	recordSuccess(a, 5*time.Millisecond, PriorityNormal)
	recordSuccess(a, 40*time.Millisecond, PriorityNormal)

	snap := a.Snapshot()
	assert.Equal(t, 5*time.Millisecond, snap.BestProcessingTime)
	assert.Equal(t, 40*time.Millisecond, snap.WorstProcessingTime)
}

func TestAggregator_OutcomeCounts(t *testing.T) {
	a := newTestAggregator(t)

	recordSuccess(a, time.Millisecond, PriorityNormal)
	a.Record(&Result{
		Success:        false,
		ProcessingTime: time.Millisecond,
		Err:            &errspkg.ProcessingError{RequestID: "r", Reason: "processor", Err: fmt.Errorf("boom")},
	}, PriorityHigh)

	snap := a.Snapshot()
	assert.Equal(t, uint64(2), snap.Count)
	assert.Equal(t, uint64(1), snap.SuccessCount)
	assert.Equal(t, uint64(1), snap.FailureCount)
	assert.Equal(t, uint64(1), snap.ErrorsByType["processing"])
	assert.Equal(t, uint64(1), snap.ResultsByPriority["normal"])
	assert.Equal(t, uint64(1), snap.ResultsByPriority["high"])
}

func TestAggregator_RejectionClassification(t *testing.T) {
	a := newTestAggregator(t)

	a.RecordRejection(errspkg.ErrCapabilityDisabled)
	a.RecordRejection(errspkg.ErrCapabilityUnavailable)
	a.RecordRejection(errspkg.ErrQueueFull)
	a.RecordRejection(errspkg.ErrRateLimited)
	a.RecordRejection(fmt.Errorf("wrapped: %w", errspkg.ErrQueueFull))

	snap := a.Snapshot()
	assert.Equal(t, uint64(1), snap.ErrorsByType["disabled"])
	assert.Equal(t, uint64(1), snap.ErrorsByType["unavailable"])
	assert.Equal(t, uint64(2), snap.ErrorsByType["queue_full"])
	assert.Equal(t, uint64(1), snap.ErrorsByType["rate_limited"])
	assert.Equal(t, uint64(0), snap.Count, "rejections never count as completions")
}

func TestAggregator_CacheHits(t *testing.T) {
	a := newTestAggregator(t)

	a.RecordCacheHit()
	a.RecordCacheHit()

	assert.Equal(t, uint64(2), a.Snapshot().CacheHits)
}

func TestAggregator_Gauges(t *testing.T) {
	a := newTestAggregator(t)

	a.SetInFlight(3)
	a.SetQueueDepth(7)

	snap := a.Snapshot()
	assert.Equal(t, 3, snap.InFlight)
	assert.Equal(t, 7, snap.QueueDepth)
}

func TestAggregator_ResetKeepsGauges(t *testing.T) {
	a := newTestAggregator(t)

	recordSuccess(a, time.Millisecond, PriorityNormal)
	a.RecordCacheHit()
	a.SetInFlight(2)
	a.SetQueueDepth(4)

	a.Reset()

	snap := a.Snapshot()
	assert.Equal(t, uint64(0), snap.Count)
	assert.Equal(t, uint64(0), snap.CacheHits)
	assert.Equal(t, time.Duration(0), snap.MeanProcessingTime)
	assert.Empty(t, snap.ErrorsByType)
	assert.Equal(t, 2, snap.InFlight, "live gauges survive a reset")
	assert.Equal(t, 4, snap.QueueDepth)
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{errspkg.ErrCapabilityDisabled, "disabled"},
		{errspkg.ErrCapabilityUnavailable, "unavailable"},
		{errspkg.ErrQueueFull, "queue_full"},
		{errspkg.ErrRateLimited, "rate_limited"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "canceled"},
		{&errspkg.ProcessingError{RequestID: "r", Reason: "processor", Err: fmt.Errorf("boom")}, "processing"},
		{fmt.Errorf("unrelated"), "other"},
		{nil, ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.kind, classifyError(tc.err), "error: %v", tc.err)
	}
}
