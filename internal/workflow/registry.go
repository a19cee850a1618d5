package workflow

import (
	"errors"
	"fmt"
	"sort"
)

// ErrStepNotFound is returned by Registry.Get for an unknown step name.
var ErrStepNotFound = errors.New("step handler not found")

// Registry maps step names to handlers. Each workflow run builds its own
// Registry, so handlers may hold per-run dependencies.
type Registry struct {
	handlers map[string]StepHandler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]StepHandler)}
}

// Register adds handlers keyed by Name(). It panics on a nil handler, an
// empty name or a duplicate name, all of which are programming errors.
func (r *Registry) Register(handlers ...StepHandler) {
	for _, h := range handlers {
		if h == nil {
			panic("workflow: Register called with nil handler")
		}
		name := h.Name()
		if name == "" {
			panic("workflow: Register called with handler that returns empty name")
		}
		if _, exists := r.handlers[name]; exists {
			panic(fmt.Sprintf("workflow: handler %q is already registered", name))
		}
		r.handlers[name] = h
	}
}

// Get returns the handler registered under name.
func (r *Registry) Get(name string) (StepHandler, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("step %q: %w", name, ErrStepNotFound)
	}
	return h, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// List returns the registered names in alphabetical order.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
