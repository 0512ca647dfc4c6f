package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	configpkg "github.com/capkit/capkit/internal/runtime/config"
	errspkg "github.com/capkit/capkit/internal/runtime/errors"
	idspkg "github.com/capkit/capkit/internal/runtime/ids"
	loggingpkg "github.com/capkit/capkit/internal/runtime/logging"
)

// Dependencies holds the optional collaborators of a Capability. Leave fields
// nil to use the defaults.
type Dependencies struct {
	Logger            loggingpkg.ServiceLogger
	EnvironmentSource configpkg.EnvironmentSource
	Registerer        prometheus.Registerer
}

// inflightEntry tracks one admitted request until its terminal resolution.
type inflightEntry struct {
	req         *Request
	fingerprint Fingerprint
	ctx         context.Context
	cancel      context.CancelFunc
	// detached marks entries whose caller cancelled the expectation. The
	// processor may keep running; its result is still recorded and broadcast.
	detached bool
}

// Capability is one actor-isolated resource runtime: it gates submissions
// through its lifecycle state machine, enforces the concurrency ceiling with
// priority-ordered overflow queueing, memoizes results by fingerprint,
// republishes every terminal result on the broadcast stream, and folds each
// completion into the running metrics.
//
// A single mutex serializes every mutation of the in-flight table, the queue,
// the cache, and the effective configuration. Only domain processor
// invocations run outside the lock.
type Capability struct {
	name      string
	processor Processor
	logger    loggingpkg.ServiceLogger
	envSource configpkg.EnvironmentSource

	metrics     *Aggregator
	broadcaster *Broadcaster

	mu            sync.Mutex
	baseConf      configpkg.Config // as supplied, before environment adjustment
	conf          configpkg.Config // effective
	env           configpkg.Environment
	state         LifecycleState
	cache         *resultCache
	queue         *requestQueue
	inFlight      map[string]*inflightEntry
	inFlightCount int
	draining      bool
	limiter       *rate.Limiter
	runCtx        context.Context
	runCancel     context.CancelFunc

	// pubMu serializes result publication so broadcast order matches
	// completion order.
	pubMu sync.Mutex
}

// New constructs a capability runtime. The returned Capability is in the
// unknown state; call Activate before submitting work.
func New(name string, conf *configpkg.Config, processor Processor, deps Dependencies) (*Capability, error) {
	if name == "" {
		return nil, errspkg.ErrCapabilityNameRequired
	}
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if processor == nil {
		return nil, errspkg.ErrProcessorRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, &errspkg.ConfigValidationError{Err: err}
	}

	logger := deps.Logger
	if logger == nil {
		logger = loggingpkg.NewNopServiceLogger()
	}
	logger = logger.With(loggingpkg.LogFields{"capability": name})

	envSource := deps.EnvironmentSource
	if envSource == nil {
		envSource = configpkg.StaticEnvironment{}
	}
	env := envSource.Current()

	c := &Capability{
		name:        name,
		processor:   processor,
		logger:      logger,
		envSource:   envSource,
		metrics:     NewAggregator(name, deps.Registerer),
		broadcaster: NewBroadcaster(conf.StreamBuffer, logger),
		baseConf:    *conf,
		env:         env,
		state:       StateUnknown,
		inFlight:    make(map[string]*inflightEntry),
	}
	c.applyLocked(configpkg.Adjust(*conf, env))

	return c, nil
}

// Name returns the capability's identifier.
func (c *Capability) Name() string { return c.name }

// State returns the current lifecycle state.
func (c *Capability) State() LifecycleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Activate allocates the runtime's components and moves the capability to
// available. Calling Activate while already available is a no-op and emits no
// state event. A capability that has reached unavailable cannot be
// reactivated.
func (c *Capability) Activate(ctx context.Context) error {
	c.mu.Lock()

	switch c.state {
	case StateAvailable:
		c.mu.Unlock()
		return nil
	case StateUnknown:
		// The only state activation may start from.
	default:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot activate from %s", errspkg.ErrCapabilityUnavailable, state)
	}

	c.transitionLocked(StateInitializing)

	if err := c.allocateLocked(); err != nil {
		c.transitionLocked(StateUnavailable)
		c.mu.Unlock()
		return fmt.Errorf("capkit: allocating capability %s: %w", c.name, err)
	}

	c.runCtx, c.runCancel = context.WithCancel(context.Background())
	c.transitionLocked(StateAvailable)
	c.mu.Unlock()

	go c.watchEnvironment()
	return nil
}

func (c *Capability) allocateLocked() error {
	c.cache = newResultCache(c.conf.CacheCapacity, c.conf.CacheEviction)
	c.queue = newRequestQueue(c.conf.QueueCapacity, c.conf.QueueOverflowPolicy)

	if c.conf.MetricsEnabled {
		if err := c.metrics.Register(); err != nil {
			return err
		}
	}
	return nil
}

// Deactivate releases the runtime's components: queued requests are
// discarded, the cache and metrics are cleared, and in-flight work is
// detached. The only state reachable from terminating is unavailable.
// Deactivate on a capability that is not available is a no-op.
func (c *Capability) Deactivate(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateAvailable {
		c.mu.Unlock()
		return nil
	}

	c.transitionLocked(StateTerminating)

	c.runCancel()
	discarded := c.queue.Clear()
	c.metrics.SetQueueDepth(0)
	c.cache.Clear()
	c.metrics.Reset()
	for _, entry := range c.inFlight {
		entry.detached = true
	}
	c.inFlight = make(map[string]*inflightEntry)

	c.transitionLocked(StateUnavailable)
	logEnabled := c.conf.LoggingEnabled
	c.mu.Unlock()

	if logEnabled && len(discarded) > 0 {
		c.logger.Info("Discarded queued requests on deactivation", loggingpkg.LogFields{"count": len(discarded)})
	}

	// Closed after the final state event so subscribers observe unavailable.
	return c.broadcaster.Close()
}

// transitionLocked moves the state machine. A transition to the current state
// (compared by enum value) is skipped and emits no event.
func (c *Capability) transitionLocked(to LifecycleState) {
	if to == c.state {
		return
	}
	from := c.state
	c.state = to

	if err := c.broadcaster.PublishState(to); err != nil && c.conf.LoggingEnabled {
		c.logger.Error("Failed to publish lifecycle transition", err, loggingpkg.LogFields{"state": to.String()})
	}
	if c.conf.LoggingEnabled {
		c.logger.Info("Lifecycle transition", loggingpkg.LogFields{"from": from.String(), "to": to.String()})
	}
}

// Submit runs a request through the admission path. It returns the terminal
// result, a typed error, or ErrRequestQueued when the concurrency ceiling is
// reached; queued requests resolve on the result stream without caller
// involvement.
func (c *Capability) Submit(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, errspkg.ErrRequestRequired
	}
	if req.ID == "" {
		req.ID = idspkg.CreateULID()
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now().UTC()
	}

	c.mu.Lock()

	if c.state != StateAvailable {
		c.mu.Unlock()
		c.metrics.RecordRejection(errspkg.ErrCapabilityUnavailable)
		return nil, errspkg.ErrCapabilityUnavailable
	}
	if !c.conf.Enabled {
		c.mu.Unlock()
		c.metrics.RecordRejection(errspkg.ErrCapabilityDisabled)
		return nil, errspkg.ErrCapabilityDisabled
	}
	if c.limiter != nil && !c.limiter.Allow() {
		c.mu.Unlock()
		c.metrics.RecordRejection(errspkg.ErrRateLimited)
		return nil, errspkg.ErrRateLimited
	}

	fp, err := ComputeFingerprint(req)
	if err != nil {
		c.mu.Unlock()
		c.metrics.RecordRejection(err)
		return nil, err
	}

	if cached, ok := c.cache.Get(fp); ok {
		c.metrics.RecordCacheHit()
		c.mu.Unlock()
		hit := *cached
		hit.FromCache = true
		c.publish(&hit)
		return &hit, nil
	}

	if c.inFlightCount < c.conf.MaxConcurrent {
		entry := c.admitLocked(ctx, req, fp)
		c.mu.Unlock()
		return c.execute(entry)
	}

	dropped, pushErr := c.queue.Push(req, fp)
	if pushErr != nil {
		c.mu.Unlock()
		c.metrics.RecordRejection(pushErr)
		return nil, pushErr
	}
	c.metrics.SetQueueDepth(c.queue.Len())
	logEnabled := c.conf.LoggingEnabled
	c.mu.Unlock()

	if dropped != nil && logEnabled {
		c.logger.Info("Dropped oldest queued request for overflow", loggingpkg.LogFields{
			"dropped_request_id": dropped.req.ID,
			"dropped_priority":   dropped.req.Priority.String(),
		})
	}
	return nil, errspkg.ErrRequestQueued
}

// admitLocked reserves an execution slot for the request.
func (c *Capability) admitLocked(parent context.Context, req *Request, fp Fingerprint) *inflightEntry {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	entry := &inflightEntry{req: req, fingerprint: fp, ctx: ctx, cancel: cancel}

	c.inFlightCount++
	c.inFlight[req.ID] = entry
	c.metrics.SetInFlight(c.inFlightCount)
	return entry
}

// execute invokes the domain processor for an admitted request and resolves
// its terminal result.
func (c *Capability) execute(entry *inflightEntry) (*Result, error) {
	defer entry.cancel()

	c.mu.Lock()
	conf := c.conf
	c.mu.Unlock()

	ctx := entry.ctx
	if conf.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, conf.RequestTimeout)
		defer cancel()
	}

	tracer := otel.Tracer("capability-runtime")
	ctx, span := tracer.Start(ctx, "ProcessRequest")
	span.SetAttributes(
		attribute.String("capability", c.name),
		attribute.String("request.id", entry.req.ID),
		attribute.String("request.priority", entry.req.Priority.String()),
	)
	defer span.End()

	start := time.Now()
	payload, err := c.processor(ctx, entry.req, &conf)
	elapsed := time.Since(start)

	res := &Result{
		ID:             idspkg.CreateULID(),
		RequestID:      entry.req.ID,
		ProcessingTime: elapsed,
		ProducedAt:     time.Now().UTC(),
	}
	if err != nil {
		span.RecordError(err)
		reason := "processor"
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			reason = "timeout"
		case errors.Is(err, context.Canceled):
			reason = "canceled"
		}
		procErr := &errspkg.ProcessingError{RequestID: entry.req.ID, Reason: reason, Err: err}
		res.Success = false
		res.Err = procErr
		res.Error = procErr.Error()
	} else {
		res.Success = true
		res.Payload = payload
	}

	c.complete(entry, res)

	if res.Err != nil {
		return res, res.Err
	}
	return res, nil
}

// cacheable reports whether a result may be memoized. Timeout and
// cancellation failures describe the conditions of a single attempt rather
// than the request itself; memoizing them would pin a transient failure to
// the fingerprint and survive a later configuration change. Processor
// failures stay cacheable.
func cacheable(res *Result) bool {
	var procErr *errspkg.ProcessingError
	if res.Err == nil || !errors.As(res.Err, &procErr) {
		return true
	}
	return procErr.Reason != "timeout" && procErr.Reason != "canceled"
}

// complete retires an in-flight request: it frees the execution slot, caches
// the result, records metrics, broadcasts the result, and wakes the drain
// loop. Cache insert and metrics update happen atomically with respect to
// other requests' admission decisions.
func (c *Capability) complete(entry *inflightEntry, res *Result) {
	c.mu.Lock()
	delete(c.inFlight, entry.req.ID)
	c.inFlightCount--
	c.metrics.SetInFlight(c.inFlightCount)
	if c.state == StateAvailable && cacheable(res) {
		c.cache.Put(entry.fingerprint, res)
	}
	c.metrics.Record(res, entry.req.Priority)
	detached := entry.detached
	logEnabled := c.conf.LoggingEnabled
	c.mu.Unlock()

	if detached && logEnabled {
		c.logger.Debug("Completed detached request", loggingpkg.LogFields{"request_id": entry.req.ID})
	}
	c.publish(res)
	c.triggerDrain()
}

func (c *Capability) publish(res *Result) {
	c.pubMu.Lock()
	err := c.broadcaster.PublishResult(res)
	c.pubMu.Unlock()
	if err != nil {
		c.logger.Error("Failed to broadcast result", err, loggingpkg.LogFields{"request_id": res.RequestID})
	}
}

// triggerDrain starts a drain pass unless one is already running. The drain
// flag is manipulated under the same mutex as the queue so completions can
// never observe a stale flag and lose a wakeup.
func (c *Capability) triggerDrain() {
	c.mu.Lock()
	if c.draining || c.state != StateAvailable || c.queue.Len() == 0 {
		c.mu.Unlock()
		return
	}
	c.draining = true
	c.mu.Unlock()

	go c.drainLoop()
}

// drainLoop resubmits deferred requests through the full admission path while
// the queue is non-empty and capacity remains. Priority ordering is
// re-evaluated on every iteration, so a critical request queued after a low
// one still dispatches first; in-flight work is never preempted.
func (c *Capability) drainLoop() {
	for {
		c.mu.Lock()
		if c.state != StateAvailable || c.inFlightCount >= c.conf.MaxConcurrent {
			c.draining = false
			c.mu.Unlock()
			return
		}
		entry := c.queue.Pop()
		if entry == nil {
			c.draining = false
			c.mu.Unlock()
			return
		}
		c.metrics.SetQueueDepth(c.queue.Len())

		// Full admission path: a deferred request may have become a cache hit
		// while it waited.
		if cached, ok := c.cache.Get(entry.fingerprint); ok {
			c.metrics.RecordCacheHit()
			c.mu.Unlock()
			hit := *cached
			hit.FromCache = true
			c.publish(&hit)
			continue
		}

		infl := c.admitLocked(c.runCtx, entry.req, entry.fingerprint)
		c.mu.Unlock()

		go func() {
			_, _ = c.execute(infl)
		}()
	}
}

// CancelRequest removes a request from the queue if still pending, or
// detaches it from the in-flight table. A detached processor keeps running to
// completion and still reports a result; it is simply no longer associated
// with an active expectation. Returns false when the ID is unknown.
func (c *Capability) CancelRequest(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.queue != nil {
		if entry := c.queue.Remove(id); entry != nil {
			c.metrics.SetQueueDepth(c.queue.Len())
			return true
		}
	}
	if entry, ok := c.inFlight[id]; ok {
		entry.detached = true
		delete(c.inFlight, id)
		entry.cancel()
		return true
	}
	return false
}

// UpdateConfiguration validates and applies a new configuration. On
// validation failure the previous configuration stays in force.
func (c *Capability) UpdateConfiguration(conf *configpkg.Config) error {
	if conf == nil {
		return errspkg.ErrConfigRequired
	}
	if err := conf.Validate(); err != nil {
		return &errspkg.ConfigValidationError{Err: err}
	}

	c.mu.Lock()
	c.baseConf = *conf
	c.applyLocked(configpkg.Adjust(*conf, c.env))
	c.mu.Unlock()

	// A raised ceiling may free capacity for deferred work.
	c.triggerDrain()
	return nil
}

// applyLocked installs an already-adjusted configuration.
func (c *Capability) applyLocked(conf configpkg.Config) {
	c.conf = conf

	if conf.SubmitRatePerSec > 0 {
		burst := int(conf.SubmitRatePerSec)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(conf.SubmitRatePerSec), burst)
	} else {
		c.limiter = nil
	}

	if c.cache != nil {
		c.cache.Resize(conf.CacheCapacity, conf.CacheEviction)
	}
	if c.queue != nil {
		c.queue.Resize(conf.QueueCapacity, conf.QueueOverflowPolicy)
	}
}

// watchEnvironment re-derives the configuration on every ambient environment
// change. Reconfiguration here is best effort: failures are logged, never
// surfaced to a caller.
func (c *Capability) watchEnvironment() {
	c.mu.Lock()
	runCtx := c.runCtx
	c.mu.Unlock()

	for env := range c.envSource.Watch(runCtx) {
		c.mu.Lock()
		c.env = env
		adjusted := configpkg.Adjust(c.baseConf, env)
		if err := adjusted.Validate(); err != nil {
			c.mu.Unlock()
			c.logger.Error("Ignoring invalid environment-adjusted configuration", err, loggingpkg.LogFields{
				"low_power": env.IsLowPowerMode,
				"debug":     env.IsDebug,
			})
			continue
		}
		c.applyLocked(adjusted)
		logEnabled := adjusted.LoggingEnabled
		c.mu.Unlock()

		if logEnabled {
			c.logger.Info("Reconfigured for environment change", loggingpkg.LogFields{
				"low_power": env.IsLowPowerMode,
				"debug":     env.IsDebug,
			})
		}
		c.triggerDrain()
	}
}

// ResultStream returns an independent subscription to every terminal result.
func (c *Capability) ResultStream(ctx context.Context) (<-chan *Result, error) {
	return c.broadcaster.SubscribeResults(ctx)
}

// StateStream returns a subscription to lifecycle transitions. The current
// state is delivered first; history is never replayed. Intermediate
// transitions may be dropped when the subscriber falls behind, but the
// terminal unavailable state is always delivered.
func (c *Capability) StateStream(ctx context.Context) (<-chan LifecycleState, error) {
	raw, err := c.broadcaster.SubscribeStates(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	current := c.state
	buffer := c.conf.StreamBuffer
	c.mu.Unlock()
	if buffer <= 0 {
		buffer = defaultStreamBuffer
	}

	out := make(chan LifecycleState, buffer)
	go func() {
		defer close(out)
		out <- current
		last := current
		for state := range raw {
			// Transitions never repeat a state, so consecutive duplicates can
			// only be the snapshot racing the subscription.
			if state == last {
				continue
			}
			last = state
			if state == StateUnavailable {
				select {
				case out <- state:
				case <-ctx.Done():
				}
				continue
			}
			select {
			case out <- state:
			default:
			}
		}
	}()
	return out, nil
}

// Metrics returns a point-in-time copy of the running aggregates.
func (c *Capability) Metrics() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// ClearMetrics zeroes the running aggregates.
func (c *Capability) ClearMetrics() {
	c.metrics.Reset()
}

// ClearCache empties the result cache unconditionally.
func (c *Capability) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache != nil {
		c.cache.Clear()
	}
}
