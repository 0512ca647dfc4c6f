package errors

import (
	"fmt"

	sterrors "errors"
)

var (
	ErrConfigRequired         = sterrors.New("capkit: configuration is required")
	ErrProcessorRequired      = sterrors.New("capkit: domain processor is required")
	ErrCapabilityNameRequired = sterrors.New("capkit: capability name is required")
	ErrRequestRequired        = sterrors.New("capkit: request is required")
	ErrCapabilityDisabled     = sterrors.New("capkit: capability is disabled")
	ErrCapabilityUnavailable  = sterrors.New("capkit: capability is not available")
	ErrQueueFull              = sterrors.New("capkit: request queue is full")
	ErrRateLimited            = sterrors.New("capkit: submission rate limit exceeded")
)

// ErrRequestQueued signals that a request was accepted but deferred because the
// concurrency ceiling is reached. It is a non-fatal outcome: the queue drains
// autonomously and the result arrives on the broadcast stream. Callers must not
// retry.
var ErrRequestQueued = sterrors.New("capkit: request queued for deferred execution")

// ProcessingError wraps a domain processor failure with the request it belongs to.
type ProcessingError struct {
	RequestID string
	Reason    string
	Err       error
}

func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capkit: processing request %s failed (%s): %v", e.RequestID, e.Reason, e.Err)
	}
	return fmt.Sprintf("capkit: processing request %s failed (%s)", e.RequestID, e.Reason)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// ConfigValidationError wraps the joined validation failures reported by
// Config.Validate so callers can distinguish them from runtime errors.
type ConfigValidationError struct {
	Err error
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("capkit: invalid configuration: %v", e.Err)
}

func (e *ConfigValidationError) Unwrap() error { return e.Err }
