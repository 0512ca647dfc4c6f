package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	errspkg "github.com/capkit/capkit/internal/runtime/errors"
)

// Error kinds used as histogram categories and Prometheus labels.
const (
	errorKindDisabled    = "disabled"
	errorKindUnavailable = "unavailable"
	errorKindQueueFull   = "queue_full"
	errorKindRateLimited = "rate_limited"
	errorKindTimeout     = "timeout"
	errorKindCanceled    = "canceled"
	errorKindProcessing  = "processing"
	errorKindOther       = "other"
)

// classifyError maps a failure onto its metrics category.
func classifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errspkg.ErrCapabilityDisabled):
		return errorKindDisabled
	case errors.Is(err, errspkg.ErrCapabilityUnavailable):
		return errorKindUnavailable
	case errors.Is(err, errspkg.ErrQueueFull):
		return errorKindQueueFull
	case errors.Is(err, errspkg.ErrRateLimited):
		return errorKindRateLimited
	case errors.Is(err, context.DeadlineExceeded):
		return errorKindTimeout
	case errors.Is(err, context.Canceled):
		return errorKindCanceled
	default:
		var procErr *errspkg.ProcessingError
		if errors.As(err, &procErr) {
			return errorKindProcessing
		}
		return errorKindOther
	}
}

// MetricsSnapshot is a point-in-time copy of a capability's running
// aggregates.
type MetricsSnapshot struct {
	Count        uint64 `json:"count"`
	SuccessCount uint64 `json:"success_count"`
	FailureCount uint64 `json:"failure_count"`

	MeanProcessingTime  time.Duration `json:"mean_processing_time_ns"`
	BestProcessingTime  time.Duration `json:"best_processing_time_ns"`
	WorstProcessingTime time.Duration `json:"worst_processing_time_ns"`

	CacheHits  uint64 `json:"cache_hits"`
	InFlight   int    `json:"in_flight"`
	QueueDepth int    `json:"queue_depth"`

	ErrorsByType      map[string]uint64 `json:"errors_by_type,omitempty"`
	ResultsByPriority map[string]uint64 `json:"results_by_priority,omitempty"`

	CollectedAt time.Time `json:"collected_at"`
}

// Aggregator maintains the running statistics of one capability. Every update
// is O(1) and takes only the new result plus the previous aggregate; history
// is never replayed. The same values are mirrored into Prometheus collectors
// under the capkit namespace.
type Aggregator struct {
	mu sync.Mutex

	capability string

	count        uint64
	successCount uint64
	failureCount uint64

	meanNs  float64
	bestNs  int64
	worstNs int64

	cacheHits  uint64
	inFlight   int
	queueDepth int

	errorsByType      map[string]uint64
	resultsByPriority map[string]uint64

	completedTotal    *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
	cacheHitsTotal    *prometheus.CounterVec
	inFlightGauge     *prometheus.GaugeVec
	queueDepthGauge   *prometheus.GaugeVec
	processingSeconds *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "capkit",
			Subsystem: "capability",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "capkit",
			Subsystem: "capability",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewAggregator creates the metrics aggregator for one capability instance.
func NewAggregator(capability string, registerer prometheus.Registerer) *Aggregator {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Aggregator{
		capability:        capability,
		errorsByType:      make(map[string]uint64),
		resultsByPriority: make(map[string]uint64),
		registerer:        registerer,
		completedTotal:    newCounterVec("requests_completed_total", "Total number of completed requests", []string{"capability", "outcome"}),
		errorsTotal:       newCounterVec("errors_total", "Total number of request failures by kind", []string{"capability", "kind"}),
		cacheHitsTotal:    newCounterVec("cache_hits_total", "Total number of submissions served from the result cache", []string{"capability"}),
		inFlightGauge:     newGaugeVec("in_flight_requests", "Number of requests currently executing", []string{"capability"}),
		queueDepthGauge:   newGaugeVec("queued_requests", "Number of requests waiting in the priority queue", []string{"capability"}),
		processingSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "capkit",
				Subsystem: "capability",
				Name:      "processing_seconds",
				Help:      "Domain processor execution time",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
			},
			[]string{"capability"},
		),
	}
}

// registerOrAdopt registers a collector, taking over the already registered
// one when another aggregator on the same registerer got there first. Without
// the adoption a second capability would increment vecs the registry never
// scrapes.
func registerOrAdopt[C prometheus.Collector](registerer prometheus.Registerer, collector *C) error {
	err := registerer.Register(*collector)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return err
	}
	existing, ok := are.ExistingCollector.(C)
	if !ok {
		return err
	}
	*collector = existing
	return nil
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (a *Aggregator) Register() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.registered {
		return nil
	}

	if err := registerOrAdopt(a.registerer, &a.completedTotal); err != nil {
		return err
	}
	if err := registerOrAdopt(a.registerer, &a.errorsTotal); err != nil {
		return err
	}
	if err := registerOrAdopt(a.registerer, &a.cacheHitsTotal); err != nil {
		return err
	}
	if err := registerOrAdopt(a.registerer, &a.inFlightGauge); err != nil {
		return err
	}
	if err := registerOrAdopt(a.registerer, &a.queueDepthGauge); err != nil {
		return err
	}
	if err := registerOrAdopt(a.registerer, &a.processingSeconds); err != nil {
		return err
	}

	a.registered = true
	return nil
}

// Record folds one completed result into the aggregates.
func (a *Aggregator) Record(res *Result, priority Priority) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.count++
	outcome := "success"
	if res.Success {
		a.successCount++
	} else {
		a.failureCount++
		outcome = "failure"
		kind := classifyError(res.Err)
		if kind == "" {
			kind = errorKindOther
		}
		a.errorsByType[kind]++
		a.errorsTotal.WithLabelValues(a.capability, kind).Inc()
	}

	x := float64(res.ProcessingTime.Nanoseconds())
	// Incremental mean: mean' = mean + (x - mean)/n.
	a.meanNs += (x - a.meanNs) / float64(a.count)

	ns := res.ProcessingTime.Nanoseconds()
	if a.count == 1 || ns < a.bestNs {
		a.bestNs = ns
	}
	if ns > a.worstNs {
		a.worstNs = ns
	}

	a.resultsByPriority[priority.String()]++

	a.completedTotal.WithLabelValues(a.capability, outcome).Inc()
	a.processingSeconds.WithLabelValues(a.capability).Observe(res.ProcessingTime.Seconds())
}

// RecordRejection counts a submission that never reached the processor.
func (a *Aggregator) RecordRejection(err error) {
	kind := classifyError(err)
	if kind == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorsByType[kind]++
	a.errorsTotal.WithLabelValues(a.capability, kind).Inc()
}

// RecordCacheHit counts a submission served from the result cache.
func (a *Aggregator) RecordCacheHit() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cacheHits++
	a.cacheHitsTotal.WithLabelValues(a.capability).Inc()
}

// SetInFlight records the current number of executing requests.
func (a *Aggregator) SetInFlight(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.inFlight = n
	a.inFlightGauge.WithLabelValues(a.capability).Set(float64(n))
}

// SetQueueDepth records the current priority queue size.
func (a *Aggregator) SetQueueDepth(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.queueDepth = n
	a.queueDepthGauge.WithLabelValues(a.capability).Set(float64(n))
}

// Snapshot returns a point-in-time copy of the aggregates.
func (a *Aggregator) Snapshot() MetricsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot := MetricsSnapshot{
		Count:               a.count,
		SuccessCount:        a.successCount,
		FailureCount:        a.failureCount,
		MeanProcessingTime:  time.Duration(a.meanNs),
		BestProcessingTime:  time.Duration(a.bestNs),
		WorstProcessingTime: time.Duration(a.worstNs),
		CacheHits:           a.cacheHits,
		InFlight:            a.inFlight,
		QueueDepth:          a.queueDepth,
		ErrorsByType:        make(map[string]uint64, len(a.errorsByType)),
		ResultsByPriority:   make(map[string]uint64, len(a.resultsByPriority)),
		CollectedAt:         time.Now().UTC(),
	}
	for kind, n := range a.errorsByType {
		snapshot.ErrorsByType[kind] = n
	}
	for prio, n := range a.resultsByPriority {
		snapshot.ResultsByPriority[prio] = n
	}
	return snapshot
}

// Reset zeroes all aggregates. The in-flight and queue-depth gauges are left
// alone: they reflect live runtime state, not history.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.count = 0
	a.successCount = 0
	a.failureCount = 0
	a.meanNs = 0
	a.bestNs = 0
	a.worstNs = 0
	a.cacheHits = 0
	a.errorsByType = make(map[string]uint64)
	a.resultsByPriority = make(map[string]uint64)

	a.completedTotal.Reset()
	a.errorsTotal.Reset()
	a.cacheHitsTotal.Reset()
	a.processingSeconds.Reset()
}
