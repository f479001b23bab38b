// Package rcdb provides typed access to the per-run condition store: a
// registry of named, typed conditions, a boolean predicate algebra over
// them, and a selector that evaluates predicates across a run period.
package rcdb

import (
	"sync"

	"github.com/halld-offline/conddb/internal/model"
)

// Condition is a named, typed per-run metadata field.
type Condition struct {
	Name string
	Type model.ColumnType
}

// Alias is a named, reusable predicate.
type Alias struct {
	Name string
	Expr Expr
}

// Registry holds condition definitions and named aliases. It is an
// explicit instance rather than process-global state, so tests and embedded
// callers construct isolated registries. It is safe for concurrent use:
// registrations typically happen once at startup, reads happen on every
// expression build and evaluation.
type Registry struct {
	mu         sync.RWMutex
	conditions map[string]Condition
	aliases    map[string]Expr
	aliasOrder []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conditions: make(map[string]Condition),
		aliases:    make(map[string]Expr),
	}
}

// Register defines a condition. Re-registering the same name with the same
// type is a no-op; a different type fails with *ConditionConflictError.
func (r *Registry) Register(name string, typ model.ColumnType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.conditions[name]; ok {
		if existing.Type != typ {
			return &ConditionConflictError{Name: name, Existing: existing.Type, New: typ}
		}
		return nil
	}
	r.conditions[name] = Condition{Name: name, Type: typ}
	return nil
}

// Lookup returns the named condition definition.
func (r *Registry) Lookup(name string) (Condition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conditions[name]
	return c, ok
}

// RegisterAlias names an expression. Duplicate names overwrite: the last
// registration wins, keeping the name's original position in Aliases()
// order. Expressions already obtained from Alias() are immutable and keep
// evaluating per their original definition.
func (r *Registry) RegisterAlias(name string, expr Expr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.aliases[name]; !ok {
		r.aliasOrder = append(r.aliasOrder, name)
	}
	r.aliases[name] = expr
}

// Alias returns the expression registered under name.
func (r *Registry) Alias(name string) (Expr, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.aliases[name]
	return e, ok
}

// Aliases lists every registered alias in registration order.
func (r *Registry) Aliases() []Alias {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Alias, 0, len(r.aliasOrder))
	for _, name := range r.aliasOrder {
		out = append(out, Alias{Name: name, Expr: r.aliases[name]})
	}
	return out
}

// Conditions lists every registered condition. Order is unspecified.
func (r *Registry) Conditions() []Condition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Condition, 0, len(r.conditions))
	for _, c := range r.conditions {
		out = append(out, c)
	}
	return out
}
