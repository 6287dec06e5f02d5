package core

import "sync"

// Registry maps agent-type keys to registered handlers. It is safe for
// concurrent use. Registering an existing type replaces the previous handler
// without warning; registration during active workflow runs is safe but best
// completed during initialization.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register makes a handler available under the given agent type.
func (r *Registry) Register(agentType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[agentType] = h
}

// Get returns the handler registered for the agent type, if any.
func (r *Registry) Get(agentType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[agentType]
	return h, ok
}

// Has reports whether a handler is registered for the agent type.
func (r *Registry) Has(agentType string) bool {
	_, ok := r.Get(agentType)
	return ok
}

// Types returns the currently registered agent types in unspecified order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
