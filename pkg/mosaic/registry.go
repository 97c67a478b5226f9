package mosaic

import (
	"sort"
	"sync"
)

// Registry maps component names to definitions.
// It is safe for concurrent use, so loaders and file watchers may define
// components from their own goroutines.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Define registers def under name. A later Define for the same name
// replaces the earlier one; components already rendered keep running the
// definition they were created from.
//
// Panics if name is empty or def is nil.
func (r *Registry) Define(name string, def Definition) {
	if name == "" {
		panic("mosaic: component name cannot be empty")
	}
	if def == nil {
		panic("mosaic: definition cannot be nil for component " + name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[name] = def
}

// Has reports whether name is defined.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[name]
	return ok
}

// Get returns the definition for name. ok is false if name is not defined.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Delete removes name. Deleting an unknown name does nothing.
func (r *Registry) Delete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.defs, name)
}

// Names returns every defined name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of defined names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}
