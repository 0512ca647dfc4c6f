package runtime

import (
	"context"
	"time"

	configpkg "github.com/capkit/capkit/internal/runtime/config"
	idspkg "github.com/capkit/capkit/internal/runtime/ids"
)

// Priority orders deferred requests. Higher values dispatch first; within a
// tier requests dispatch in arrival order.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical

	numPriorities = 4
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

func (p Priority) valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

// LifecycleState is the single state machine gating whether a capability
// accepts work.
type LifecycleState int

const (
	StateUnknown LifecycleState = iota
	StateInitializing
	StateAvailable
	StateUnavailable
	StateTerminating
)

func (s LifecycleState) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateInitializing:
		return "initializing"
	case StateAvailable:
		return "available"
	case StateUnavailable:
		return "unavailable"
	case StateTerminating:
		return "terminating"
	default:
		return "invalid"
	}
}

// Request is a unit of work submitted to a capability. Immutable once created;
// the runtime owns it exclusively from submission until terminal resolution.
type Request struct {
	// ID uniquely identifies this submission. Assigned at submit when empty.
	ID string `json:"id"`
	// Payload is the capability-specific input, treated as opaque by the
	// runtime except for fingerprinting.
	Payload any `json:"payload"`
	// Priority orders the request relative to other deferred requests.
	Priority Priority `json:"priority"`
	// SubmittedAt is set at submit when zero.
	SubmittedAt time.Time `json:"submitted_at"`
	// Metadata carries caller annotations. Part of the cache fingerprint.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewRequest builds a request with a fresh ULID and the current time.
func NewRequest(payload any, priority Priority) *Request {
	return &Request{
		ID:          idspkg.CreateULID(),
		Payload:     payload,
		Priority:    priority,
		SubmittedAt: time.Now().UTC(),
	}
}

// Result is the terminal outcome of one request. Produced exactly once,
// immutable, and shared read-only between the cache and the broadcast stream.
type Result struct {
	ID             string        `json:"id"`
	RequestID      string        `json:"request_id"`
	Payload        any           `json:"payload,omitempty"`
	Error          string        `json:"error,omitempty"`
	ProcessingTime time.Duration `json:"processing_time_ns"`
	Success        bool          `json:"success"`
	ProducedAt     time.Time     `json:"produced_at"`
	// FromCache marks results that were served from the memoization cache
	// rather than a fresh processor invocation.
	FromCache bool `json:"from_cache,omitempty"`

	// Err is the in-process error value behind the Error string. Not part of
	// the broadcast payload.
	Err error `json:"-"`
}

// Processor is the capability-specific transformation from request to domain
// output. It must honor ctx cancellation if it suspends; the runtime wraps it
// with the configured deadline.
type Processor func(ctx context.Context, req *Request, conf *configpkg.Config) (any, error)
