package capkit

import (
	capabilitypkg "github.com/capkit/capkit/capability"
	runtimepkg "github.com/capkit/capkit/internal/runtime"
	configpkg "github.com/capkit/capkit/internal/runtime/config"
	errspkg "github.com/capkit/capkit/internal/runtime/errors"
	idspkg "github.com/capkit/capkit/internal/runtime/ids"
	jsoncodec "github.com/capkit/capkit/internal/runtime/jsoncodec"
	loggingpkg "github.com/capkit/capkit/internal/runtime/logging"
)

type (
	Capability   = runtimepkg.Capability
	Dependencies = runtimepkg.Dependencies
	Request      = runtimepkg.Request
	Result       = runtimepkg.Result
	Processor    = runtimepkg.Processor
	Fingerprint  = runtimepkg.Fingerprint

	Priority        = runtimepkg.Priority
	LifecycleState  = runtimepkg.LifecycleState
	MetricsSnapshot = runtimepkg.MetricsSnapshot

	Config            = configpkg.Config
	Environment       = configpkg.Environment
	EnvironmentSource = configpkg.EnvironmentSource
	StaticEnvironment = configpkg.StaticEnvironment

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ProcessingError       = errspkg.ProcessingError
	ConfigValidationError = errspkg.ConfigValidationError

	// Capability registry types (capability package)
	CapabilityBuilder  = capabilitypkg.Builder
	CapabilityRegistry = capabilitypkg.Registry
)

// Priority levels, lowest to highest.
const (
	PriorityLow      = runtimepkg.PriorityLow
	PriorityNormal   = runtimepkg.PriorityNormal
	PriorityHigh     = runtimepkg.PriorityHigh
	PriorityCritical = runtimepkg.PriorityCritical
)

// Lifecycle states.
const (
	StateUnknown      = runtimepkg.StateUnknown
	StateInitializing = runtimepkg.StateInitializing
	StateAvailable    = runtimepkg.StateAvailable
	StateUnavailable  = runtimepkg.StateUnavailable
	StateTerminating  = runtimepkg.StateTerminating
)

// Cache eviction and queue overflow policies.
const (
	EvictionNone       = configpkg.EvictionNone
	EvictionLRU        = configpkg.EvictionLRU
	OverflowReject     = configpkg.OverflowReject
	OverflowDropOldest = configpkg.OverflowDropOldest
)

var (
	New                = runtimepkg.New
	NewRequest         = runtimepkg.NewRequest
	ComputeFingerprint = runtimepkg.ComputeFingerprint
	ValidateConfig     = configpkg.ValidateConfig
	AdjustConfig       = configpkg.Adjust

	// Capability registry (capability package)
	// Use RegisterCapability and BuildCapability to work with the modular
	// capability packages.
	// Import individual capabilities via: _ "github.com/capkit/capkit/capability/keyboard"
	DefaultCapabilityRegistry = capabilitypkg.DefaultRegistry
	RegisterCapability        = capabilitypkg.Register
	BuildCapability           = capabilitypkg.Build

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrConfigRequired         = errspkg.ErrConfigRequired
	ErrProcessorRequired      = errspkg.ErrProcessorRequired
	ErrCapabilityNameRequired = errspkg.ErrCapabilityNameRequired
	ErrRequestRequired        = errspkg.ErrRequestRequired
	ErrCapabilityDisabled     = errspkg.ErrCapabilityDisabled
	ErrCapabilityUnavailable  = errspkg.ErrCapabilityUnavailable
	ErrQueueFull              = errspkg.ErrQueueFull
	ErrRateLimited            = errspkg.ErrRateLimited
	ErrRequestQueued          = errspkg.ErrRequestQueued

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewNopServiceLogger       = loggingpkg.NewNopServiceLogger

	CreateULID = idspkg.CreateULID
)
