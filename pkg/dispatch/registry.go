package dispatch

import (
	"fmt"
	"sort"
	"sync"
)

// Registry stores transports by name.
type Registry struct {
	mu         sync.RWMutex
	transports map[string]Transport
}

// NewRegistry creates an empty registry instance.
func NewRegistry() *Registry {
	return &Registry{
		transports: make(map[string]Transport),
	}
}

// Register adds a transport by its Name(). Duplicate names return an error.
func (r *Registry) Register(transport Transport) error {
	if transport == nil {
		return fmt.Errorf("dispatch: transport is required")
	}
	name := transport.Name()
	if name == "" {
		return fmt.Errorf("dispatch: transport name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transports[name]; exists {
		return fmt.Errorf("dispatch: transport %q already registered", name)
	}
	r.transports[name] = transport
	return nil
}

// MustRegister panics on registration failure.
func (r *Registry) MustRegister(transport Transport) {
	if err := r.Register(transport); err != nil {
		panic(err)
	}
}

// Get retrieves a transport by name.
func (r *Registry) Get(name string) (Transport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	transport, ok := r.transports[name]
	if !ok {
		return nil, fmt.Errorf("dispatch: transport %q not found", name)
	}
	return transport, nil
}

// List returns the registered names sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.transports))
	for name := range r.transports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
