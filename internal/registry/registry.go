// Package registry holds the static node-kind table: declared ports,
// default params and category per kind.
package registry

import (
	"sort"
	"sync"

	"github.com/atelier-studio/atelier/pkg/schema"
)

// Registry is the concrete thread-safe node definition table. It is
// populated once at startup and read-only afterwards; Register exists for
// startup wiring and tests, not for runtime mutation.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]schema.NodeDefinition
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[string]schema.NodeDefinition),
	}
}

// Register adds a node definition to the registry. Returns error on
// duplicate kind.
func (r *Registry) Register(def schema.NodeDefinition) error {
	if def.Kind == "" {
		return schema.NewError(schema.ErrCodeValidation, "node kind is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[def.Kind]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "node kind %q already registered", def.Kind)
	}

	r.kinds[def.Kind] = def
	return nil
}

// Get retrieves a node definition by kind.
func (r *Registry) Get(kind string) (schema.NodeDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.kinds[kind]
	if !ok {
		return schema.NodeDefinition{}, schema.NewErrorf(schema.ErrCodeNotFound, "node kind %q not registered", kind)
	}
	return def, nil
}

// Has checks if a kind is registered.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.kinds[kind]
	return ok
}

// List returns all definitions, sorted by kind.
func (r *Registry) List() []schema.NodeDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]schema.NodeDefinition, 0, len(r.kinds))
	for _, d := range r.kinds {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Kind < defs[j].Kind
	})
	return defs
}

// Count returns the number of registered kinds.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.kinds)
}
