package system

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrSystemExists   = errors.New("training system already registered")
	ErrSystemNotFound = errors.New("training system not found")
)

// Registry maps names to live training systems. It is an explicitly owned
// object: construct it at setup, pass it to the host loop, and tear it down
// with Shutdown when the run ends.
type Registry struct {
	mu sync.RWMutex
	m  map[string]System
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[string]System)}
}

func (r *Registry) Register(name string, sys System) error {
	if name == "" {
		return errors.New("system name is required")
	}
	if sys == nil {
		return errors.New("system is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrSystemExists, name)
	}
	r.m[name] = sys
	return nil
}

func (r *Registry) Get(name string) (System, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sys, ok := r.m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSystemNotFound, name)
	}
	return sys, nil
}

// Deregister removes one name. Unknown names are a no-op so teardown paths
// can run unconditionally.
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, name)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.m))
	for name := range r.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shutdown drops every registered system. Systems needing teardown beyond
// garbage collection expose it themselves; the registry only owns the
// name mapping.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m = make(map[string]System)
}
