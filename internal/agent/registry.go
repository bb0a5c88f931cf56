package agent

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Registry owns the agents of one world, keyed by ID, and iterates them in
// insertion order.
type Registry struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*Agent
	order []*Agent
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[uuid.UUID]*Agent)}
}

// Add registers a. Adding the same ID twice is an error.
func (r *Registry) Add(a *Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[a.ID]; exists {
		return fmt.Errorf("agent: duplicate id %s", a.ID)
	}
	r.byID[a.ID] = a
	r.order = append(r.order, a)
	return nil
}

// Get looks an agent up by ID.
func (r *Registry) Get(id uuid.UUID) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// FindByName returns the first agent with the given name.
func (r *Registry) FindByName(name string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.order {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Remove destroys and unregisters the agent. Unknown IDs are ignored.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return false
	}
	a.Destroy()
	delete(r.byID, id)
	for i, o := range r.order {
		if o == a {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// All returns a copy of the agents in insertion order.
func (r *Registry) All() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Agent, len(r.order))
	copy(out, r.order)
	return out
}

// Len is the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
