package registry

import (
	"slices"
	"sort"

	"github.com/roach88/tsolve/internal/ir"
)

// View is an immutable snapshot of a Registry. It is safe for concurrent
// use by any number of solves.
type View struct {
	t tables
}

// ImplementationsFor returns the implementations of trait in registration
// order. The returned slice must not be modified.
func (v *View) ImplementationsFor(trait string) []GlobalImplID {
	return v.t.byTrait[trait]
}

// HasImplementations reports whether any implementation of trait exists.
func (v *View) HasImplementations(trait string) bool {
	return len(v.t.byTrait[trait]) > 0
}

// Implementation returns the implementation with the given id.
func (v *View) Implementation(id GlobalImplID) Implementation {
	return v.t.implementation(id)
}

// AssocValue returns the associated type value with the given id.
func (v *View) AssocValue(id AssocValueID) AssociatedTypeValue {
	return v.t.assocValue(id)
}

// AssocValueFor finds the value impl binds for the associated type name.
func (v *View) AssocValueFor(impl GlobalImplID, name string) (AssocValueID, bool) {
	id, ok := v.t.assocIndex[assocKey{impl: impl, name: name}]
	return id, ok
}

// Trait returns the declaration of a trait.
func (v *View) Trait(name string) (TraitDecl, bool) {
	d, ok := v.t.traits[name]
	return d, ok
}

// Type returns the declaration of a type constructor.
func (v *View) Type(name string) (TypeDecl, bool) {
	d, ok := v.t.types[name]
	return d, ok
}

// Closure returns the declaration of a closure literal.
func (v *View) Closure(id ir.ClosureID) (ClosureDecl, bool) {
	d, ok := v.t.closures[id]
	return d, ok
}

// IsAuto reports whether trait is a declared auto trait.
func (v *View) IsAuto(trait string) bool {
	return v.t.traits[trait].Auto
}

// TraitNames returns every declared trait, sorted.
func (v *View) TraitNames() []string {
	names := make([]string, 0, len(v.t.traits))
	for name := range v.t.traits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered implementations and associated
// values.
func (v *View) Len() (impls, assocs int) {
	return len(v.t.impls), len(v.t.assocs)
}

// ImplClause reconstructs the clause an implementation contributes to a
// goal with the given self type. ok is false when the implementation can
// never apply to self.
func (v *View) ImplClause(id GlobalImplID, self ir.Ty) (ir.Clause, bool) {
	return v.t.implClause(id, v.t.implementation(id), self)
}

// AssocClause reconstructs the projection clause for an associated value:
// its implementation's clause with the head replaced by the projection
// equality.
func (v *View) AssocClause(id AssocValueID, self ir.Ty) (ir.Clause, bool) {
	val := v.t.assocValue(id)
	c, ok := v.ImplClause(val.Impl, self)
	if !ok {
		return ir.Clause{}, false
	}
	return assocClause(c, val, id), true
}

// ProjectionCandidates returns, in registration order, the associated
// values that could normalise <_ as trait>::name.
func (v *View) ProjectionCandidates(trait, name string) []AssocValueID {
	var ids []AssocValueID
	for _, impl := range v.t.byTrait[trait] {
		if id, ok := v.AssocValueFor(impl, name); ok {
			ids = append(ids, id)
		}
	}
	return slices.Clip(ids)
}
