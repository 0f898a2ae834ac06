package hooks

import (
	"fmt"
	"sync"

	"github.com/kestrelorch/kestrel/pkg/domain"
)

// Factory builds the hooks for one node from its driver config.
type Factory func(config map[string]string) (domain.HookSet, error)

// Registry maps driver names to hook factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under a driver name. Registering the same name
// twice is an error.
func (r *Registry) Register(driver string, factory Factory) error {
	if driver == "" {
		return fmt.Errorf("driver name is required")
	}
	if factory == nil {
		return fmt.Errorf("factory for driver %q is nil", driver)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[driver]; exists {
		return fmt.Errorf("driver %q already registered", driver)
	}
	r.factories[driver] = factory
	return nil
}

// MustRegister is Register that panics on error. For init-time wiring.
func (r *Registry) MustRegister(driver string, factory Factory) {
	if err := r.Register(driver, factory); err != nil {
		panic(err)
	}
}

// Resolve fills the Hooks of every spec from its Driver. Specs that
// already carry hooks are left alone; a spec with neither hooks nor a
// known driver is an error.
func (r *Registry) Resolve(specs []domain.NodeSpec) ([]domain.NodeSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resolved := make([]domain.NodeSpec, len(specs))
	copy(resolved, specs)

	for i := range resolved {
		spec := &resolved[i]
		if spec.Hooks.Start != nil {
			continue
		}
		if spec.Driver == "" {
			return nil, fmt.Errorf("node %q has neither hooks nor a driver", spec.Name)
		}

		factory, ok := r.factories[spec.Driver]
		if !ok {
			return nil, fmt.Errorf("node %q uses unknown driver %q", spec.Name, spec.Driver)
		}

		hooks, err := factory(spec.Config)
		if err != nil {
			return nil, fmt.Errorf("driver %q rejected config of node %q: %w", spec.Driver, spec.Name, err)
		}
		spec.Hooks = hooks
	}

	return resolved, nil
}
