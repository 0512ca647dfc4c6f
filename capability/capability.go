// Package capability defines the registry that maps capability names to
// their builders. Each capability implementation (keyboard, touch,
// accessibility, uirender, gpu, animation) lives in its own sub-package and
// registers itself with the registry.
package capability

import (
	"fmt"
	"sync"

	"github.com/capkit/capkit/internal/runtime"
	configpkg "github.com/capkit/capkit/internal/runtime/config"
)

// Builder is the function signature for constructing a capability runtime
// with its domain processor already bound. A nil config selects the
// capability's default configuration.
type Builder func(conf *Config, deps runtime.Dependencies) (*runtime.Capability, error)

// Config is the per-capability runtime configuration.
type Config = configpkg.Config

// Registry maintains a mapping of capability names to their builders.
// Capability packages should register themselves using Register.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// DefaultRegistry is the global capability registry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates a new capability registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a capability builder to the registry. The name is the
// identifier passed to Build (e.g., "keyboard", "touch").
func (r *Registry) Register(name string, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = builder
}

// Build constructs a capability using the registered builder for name.
func (r *Registry) Build(name string, conf *Config, deps runtime.Dependencies) (*runtime.Capability, error) {
	r.mu.RLock()
	builder, ok := r.builders[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown capability: %q (registered: %v)", name, r.Names())
	}
	return builder(conf, deps)
}

// Names returns the list of registered capability names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	return names
}

// Has returns true if a capability is registered with the given name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[name]
	return ok
}

// Register adds a capability builder to the default registry.
func Register(name string, builder Builder) {
	DefaultRegistry.Register(name, builder)
}

// Build constructs a capability using the default registry.
func Build(name string, conf *Config, deps runtime.Dependencies) (*runtime.Capability, error) {
	return DefaultRegistry.Build(name, conf, deps)
}
