package provider

import (
	"strings"
	"sync"
)

// Registry maps provider names to their integrations. Lookup is
// case-insensitive: provider rows are administrator-entered and the
// integration key should not depend on their casing.
type Registry struct {
	mu           sync.RWMutex
	integrations map[string]Integration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		integrations: make(map[string]Integration),
	}
}

// Register adds an integration under the given provider name, replacing
// any previous registration for that name.
func (r *Registry) Register(name string, integration Integration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.integrations[strings.ToUpper(name)] = integration
}

// Get returns the integration registered under the given provider name.
// The second return value reports whether a registration exists; a
// provider row naming an unregistered implementation is an execution
// failure for the task, handled by the worker's retry logic.
func (r *Registry) Get(name string) (Integration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	integration, ok := r.integrations[strings.ToUpper(name)]
	return integration, ok
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.integrations))
	for name := range r.integrations {
		names = append(names, name)
	}
	return names
}
