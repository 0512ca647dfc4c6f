package config

import (
	"errors"
	"fmt"
	"time"
)

// Eviction policies for the result cache.
const (
	EvictionNone = "none" // insert until full, then freeze (source-compatible default)
	EvictionLRU  = "lru"
)

// Overflow policies for the priority queue.
const (
	OverflowReject     = "reject"
	OverflowDropOldest = "drop_oldest"
)

// Low-power floors applied by Adjust when the environment reports low-power
// mode and the capability does not override them.
const (
	DefaultLowPowerMaxConcurrent  = 3
	DefaultLowPowerCacheCapacity  = 16
	DefaultLowPowerRequestTimeout = 2 * time.Second
	lowPowerMaxSubmitRate         = 10
)

// Config groups the runtime settings of a single capability instance. Zero
// values fall back to the documented defaults where one exists.
type Config struct {
	// Enabled is the capability's master switch. Submissions against a
	// disabled capability fail immediately.
	Enabled bool

	// MaxConcurrent is the admission ceiling: the number of requests that may
	// execute simultaneously. Requests beyond the ceiling are queued, not
	// rejected.
	MaxConcurrent int

	// CacheCapacity is the maximum number of memoized results. 0 disables
	// caching.
	CacheCapacity int
	// CacheEviction selects the cache policy: EvictionNone keeps the first
	// CacheCapacity results and silently drops later inserts; EvictionLRU
	// evicts the least recently used entry instead. Empty means EvictionNone.
	CacheEviction string

	// QueueCapacity bounds the deferred-request queue. 0 means unbounded.
	QueueCapacity int
	// QueueOverflowPolicy decides what happens when the queue is full:
	// OverflowReject fails the submission, OverflowDropOldest discards the
	// oldest entry of the lowest-priority tier to make room. Empty means
	// OverflowReject.
	QueueOverflowPolicy string

	// RequestTimeout bounds a single domain processor invocation. 0 disables
	// the deadline.
	RequestTimeout time.Duration

	// StreamBuffer is the per-subscriber buffer of the broadcast streams.
	// Defaults to 64.
	StreamBuffer int64

	// SubmitRatePerSec limits accepted submissions per second. 0 disables
	// rate limiting.
	SubmitRatePerSec float64

	// LoggingEnabled turns on structured log output. Forced on under debug
	// environments.
	LoggingEnabled bool

	// MetricsEnabled controls whether running aggregates are mirrored into
	// Prometheus collectors. Internal aggregates are always maintained.
	MetricsEnabled bool

	// Optional domain features. Force-disabled under low-power environments.
	PredictionEnabled     bool
	AutocorrectionEnabled bool
	AnimationEnabled      bool

	// Low-power floors. Zero values fall back to the package defaults.
	LowPowerMaxConcurrent  int
	LowPowerCacheCapacity  int
	LowPowerRequestTimeout time.Duration
}

func (c Config) String() string {
	// Type alias avoids infinite recursion when printing.
	type configAlias Config
	return fmt.Sprintf("%+v", configAlias(c))
}

// Validate checks that the configuration is internally consistent. Returns an
// error describing every invalid field.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, c.validateLimits()...)
	errs = append(errs, c.validatePolicies()...)

	return errors.Join(errs...)
}

func (c *Config) validateLimits() []error {
	var errs []error
	if c.MaxConcurrent < 1 {
		errs = append(errs, errors.New("admission: max concurrent must be at least 1"))
	}
	if c.CacheCapacity < 0 {
		errs = append(errs, errors.New("cache: capacity cannot be negative"))
	}
	if c.QueueCapacity < 0 {
		errs = append(errs, errors.New("queue: capacity cannot be negative"))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, errors.New("timeout: request timeout cannot be negative"))
	}
	if c.StreamBuffer < 0 {
		errs = append(errs, errors.New("stream: buffer cannot be negative"))
	}
	if c.SubmitRatePerSec < 0 {
		errs = append(errs, errors.New("rate: submissions per second cannot be negative"))
	}
	return errs
}

func (c *Config) validatePolicies() []error {
	var errs []error
	switch c.CacheEviction {
	case "", EvictionNone, EvictionLRU:
	default:
		errs = append(errs, fmt.Errorf("cache: unknown eviction policy %q", c.CacheEviction))
	}
	switch c.QueueOverflowPolicy {
	case "", OverflowReject, OverflowDropOldest:
	default:
		errs = append(errs, fmt.Errorf("queue: unknown overflow policy %q", c.QueueOverflowPolicy))
	}
	return errs
}

// ValidateConfig is a convenience function to validate a config pointer.
// Returns nil if the config is valid.
func ValidateConfig(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}

// Adjust derives the effective configuration for the given environment. It is
// a pure function and idempotent: Adjust(Adjust(c, e), e) == Adjust(c, e).
//
// Low-power mode clamps the concurrency ceiling, cache capacity, request
// timeout, and submission rate down to their floors (never up) and
// force-disables the optional features. Debug mode forces logging on.
func Adjust(c Config, e Environment) Config {
	if e.IsLowPowerMode {
		c.MaxConcurrent = clampInt(c.MaxConcurrent, floorInt(c.LowPowerMaxConcurrent, DefaultLowPowerMaxConcurrent))
		c.CacheCapacity = clampInt(c.CacheCapacity, floorInt(c.LowPowerCacheCapacity, DefaultLowPowerCacheCapacity))

		timeoutFloor := c.LowPowerRequestTimeout
		if timeoutFloor <= 0 {
			timeoutFloor = DefaultLowPowerRequestTimeout
		}
		// A zero timeout means "unbounded", which low-power mode must bound.
		if c.RequestTimeout == 0 || c.RequestTimeout > timeoutFloor {
			c.RequestTimeout = timeoutFloor
		}

		if c.SubmitRatePerSec > lowPowerMaxSubmitRate {
			c.SubmitRatePerSec = lowPowerMaxSubmitRate
		}

		c.PredictionEnabled = false
		c.AutocorrectionEnabled = false
		c.AnimationEnabled = false
	}

	if e.IsDebug {
		c.LoggingEnabled = true
	}

	return c
}

func clampInt(v, ceiling int) int {
	if v > ceiling {
		return ceiling
	}
	return v
}

func floorInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
