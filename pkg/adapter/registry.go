package adapter

import (
	"sync"

	"github.com/testbridge-dev/testbridge-runner/pkg/flow"
)

// Registry maps engine tags to adapter implementations. It replaces
// inheritance dispatch: a flow's engine field selects the backend at
// runtime.
type Registry struct {
	mu       sync.RWMutex
	adapters map[flow.Engine]Adapter
	order    []flow.Engine // Registration order, for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[flow.Engine]Adapter)}
}

// Register adds an adapter under its engine tag. Re-registering an
// engine replaces the previous adapter.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[a.Engine()]; !exists {
		r.order = append(r.order, a.Engine())
	}
	r.adapters[a.Engine()] = a
}

// Lookup returns the adapter registered for the engine.
func (r *Registry) Lookup(engine flow.Engine) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[engine]
	return a, ok
}

// All returns every registered adapter in registration order.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, 0, len(r.order))
	for _, engine := range r.order {
		out = append(out, r.adapters[engine])
	}
	return out
}
