// Package registry collects migration definitions and hands them to the
// engine in identifier order.
package registry

import (
	"sort"
	"sync"

	"github.com/getpup/schemamigrate"
)

// Registry is an append-only set of migration definitions.
type Registry struct {
	mu   sync.Mutex
	defs []schemamigrate.Definition
}

// New creates a registry holding defs.
func New(defs ...schemamigrate.Definition) *Registry {
	r := &Registry{}
	r.Register(defs...)
	return r
}

// Register appends defs. Problems with them are reported by List.
func (r *Registry) Register(defs ...schemamigrate.Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = append(r.defs, defs...)
}

// List returns the definitions sorted strictly ascending by identifier.
//
// It returns a *schemamigrate.DefinitionError wrapping ErrDuplicateIdentifier
// when two definitions share an identifier, or ErrInvalidDefinition when one
// has a non-positive identifier or lacks a migration function.
func (r *Registry) List() ([]schemamigrate.Definition, error) {
	r.mu.Lock()
	defs := make([]schemamigrate.Definition, len(r.defs))
	copy(defs, r.defs)
	r.mu.Unlock()

	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	for i := 1; i < len(defs); i++ {
		if defs[i].ID == defs[i-1].ID {
			return nil, &schemamigrate.DefinitionError{ID: defs[i].ID, Err: schemamigrate.ErrDuplicateIdentifier}
		}
	}

	return defs, nil
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.defs)
}

var defaultRegistry = New()

// Default returns the process-wide registry that Register appends to.
func Default() *Registry {
	return defaultRegistry
}

// Register appends defs to the default registry. It is meant to be called
// from init functions of packages that hold migrations.
func Register(defs ...schemamigrate.Definition) {
	defaultRegistry.Register(defs...)
}
