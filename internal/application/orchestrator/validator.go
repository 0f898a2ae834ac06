package orchestrator

import (
	"fmt"

	"github.com/kestrelorch/kestrel/pkg/domain"
)

// SpecSet is a validated, declaration-ordered set of NodeSpecs.
type SpecSet struct {
	specs  []domain.NodeSpec
	byName map[string]*domain.NodeSpec
}

// Names returns the node names in declaration order.
func (s *SpecSet) Names() []string {
	names := make([]string, len(s.specs))
	for i := range s.specs {
		names[i] = s.specs[i].Name
	}
	return names
}

// Get returns the spec for a node name, or nil.
func (s *SpecSet) Get(name string) *domain.NodeSpec {
	return s.byName[name]
}

// Len returns the number of specs in the set.
func (s *SpecSet) Len() int {
	return len(s.specs)
}

// Validator validates submitted spec sets
type Validator struct{}

// NewValidator creates a new spec validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks a spec set for structural problems: empty or duplicate
// names, dependencies that do not resolve within the set, and a missing
// start hook. It has no side effects.
func (v *Validator) Validate(specs []domain.NodeSpec) (*SpecSet, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("spec set must have at least one node")
	}

	set := &SpecSet{
		specs:  make([]domain.NodeSpec, len(specs)),
		byName: make(map[string]*domain.NodeSpec, len(specs)),
	}
	copy(set.specs, specs)

	for i := range set.specs {
		spec := &set.specs[i]
		if spec.Name == "" {
			return nil, fmt.Errorf("node name is required")
		}
		if _, exists := set.byName[spec.Name]; exists {
			return nil, &DuplicateNameError{Name: spec.Name}
		}
		set.byName[spec.Name] = spec
	}

	for i := range set.specs {
		spec := &set.specs[i]
		if spec.Hooks.Start == nil {
			return nil, &MissingHookError{Node: spec.Name, Hook: "start"}
		}
		for _, dep := range spec.DependsOn {
			if _, exists := set.byName[dep.Name]; !exists {
				return nil, &UnknownDependencyError{Node: spec.Name, Dependency: dep.Name}
			}
		}
	}

	return set, nil
}
