package schema

import (
	"fmt"
	"sort"
)

// Resolver resolves type names to descriptors. It is the field-resolution
// capability provided by the scanning collaborator.
type Resolver interface {
	Resolve(name string) (*TypeDescriptor, bool)
}

// Registry is an index-addressable set of type descriptors.
type Registry struct {
	types []*TypeDescriptor
	index map[string]int
}

// NewRegistry returns a registry holding the given descriptors.
func NewRegistry(types ...*TypeDescriptor) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(types))}
	for _, t := range types {
		if err := r.Add(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers a descriptor. Names must be unique.
func (r *Registry) Add(t *TypeDescriptor) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("schema: descriptor without name")
	}
	if _, ok := r.index[t.Name]; ok {
		return fmt.Errorf("schema: duplicate type %q", t.Name)
	}
	r.index[t.Name] = len(r.types)
	r.types = append(r.types, t)
	return nil
}

// Resolve implements the Resolver interface.
func (r *Registry) Resolve(name string) (*TypeDescriptor, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.types[i], true
}

// At returns the descriptor registered at position i.
func (r *Registry) At(i int) *TypeDescriptor {
	return r.types[i]
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int {
	return len(r.types)
}

// Types returns the descriptors in registration order.
func (r *Registry) Types() []*TypeDescriptor {
	return append([]*TypeDescriptor(nil), r.types...)
}

// Roots returns the names of all aggregate roots, sorted.
func (r *Registry) Roots() []string {
	var names []string
	for _, t := range r.types {
		if t.Base == BaseAggregateRoot {
			names = append(names, t.Name)
		}
	}
	sort.Strings(names)
	return names
}
