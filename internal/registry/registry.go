// Package registry holds the static set of migration definitions and resolves
// their dependency graph into a deterministic execution order.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/cargotrail/schemarun/internal/schema"
)

// Operation is one idempotent unit of schema or data change. Retries and
// restarts replay it, so Execute must be safe to invoke multiple times.
type Operation interface {
	Execute(ctx context.Context, db *schema.DB) error
}

// OperationFunc adapts a plain function to the Operation interface.
type OperationFunc func(ctx context.Context, db *schema.DB) error

func (f OperationFunc) Execute(ctx context.Context, db *schema.DB) error {
	return f(ctx, db)
}

// Definition is one immutable migration: identity, dependencies, and the
// operations that apply and (optionally) undo it.
type Definition struct {
	Name        string
	Version     string
	Description string
	// DependsOn lists migrations that must be COMPLETED before this one runs.
	DependsOn []string
	Run       Operation
	// Rollback is invoked only on explicit request, never automatically.
	Rollback Operation
}

// Registry owns the definitions for the process lifetime. Definitions are
// added once at startup and never mutated afterwards.
type Registry struct {
	defs  []Definition
	index map[string]int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Add appends definitions in declaration order. Names must be unique and
// every definition must carry a run operation.
func (r *Registry) Add(defs ...Definition) error {
	for _, d := range defs {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return fmt.Errorf("migration definition has no name")
		}
		if _, exists := r.index[name]; exists {
			return &DuplicateError{Name: name}
		}
		if d.Run == nil {
			return fmt.Errorf("migration %s has no run operation", name)
		}
		d.Name = name
		r.index[name] = len(r.defs)
		r.defs = append(r.defs, d)
	}
	return nil
}

// MustAdd is Add for compiled-in registries, panicking on registration errors
// since they are programming mistakes caught at startup.
func (r *Registry) MustAdd(defs ...Definition) {
	if err := r.Add(defs...); err != nil {
		panic(err)
	}
}

// Get looks up a definition by name.
func (r *Registry) Get(name string) (Definition, bool) {
	i, ok := r.index[name]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// Definitions returns a copy of all definitions in declaration order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Resolve validates the dependency graph and returns the definitions in a
// deterministic execution order: every definition appears after all of its
// dependencies, and ties between independent definitions are broken by
// declaration order. No partial order is returned on error.
func (r *Registry) Resolve() ([]Definition, error) {
	g, err := buildGraph(r.defs)
	if err != nil {
		return nil, err
	}
	if cycle := g.detectCycle(); cycle != nil {
		return nil, &CycleError{Path: cycle}
	}
	names, err := g.topologicalSort()
	if err != nil {
		return nil, err
	}

	out := make([]Definition, 0, len(names))
	for _, name := range names {
		out = append(out, r.defs[r.index[name]])
	}
	return out, nil
}

// Dependents returns the names of definitions that directly depend on name.
func (r *Registry) Dependents(name string) []string {
	var out []string
	for _, d := range r.defs {
		for _, dep := range d.DependsOn {
			if dep == name {
				out = append(out, d.Name)
				break
			}
		}
	}
	return out
}
