package circuit

import "sync"

// Registry holds one breaker per named dependency. It is constructed once
// at wiring time and handed to the components that need it; there is no
// package-level instance.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*CircuitBreaker)}
}

// Register adds a breaker under its name, replacing any previous one.
func (r *Registry) Register(cb *CircuitBreaker) {
	if cb == nil {
		return
	}
	r.mu.Lock()
	r.breakers[cb.Name()] = cb
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (*CircuitBreaker, bool) {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	return cb, ok
}

// States returns a snapshot of every breaker's current state, keyed by name.
func (r *Registry) States() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]State, len(r.breakers))
	for name, cb := range r.breakers {
		out[name] = cb.State()
	}
	return out
}
