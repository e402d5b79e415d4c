package registry

import (
	"maps"
	"slices"
	"sync"

	"github.com/roach88/tsolve/internal/ir"
)

type assocKey struct {
	impl GlobalImplID
	name string
}

// tables holds the arena shared by Registry and View. Slices are
// append-only, so a View can share their prefix.
type tables struct {
	impls      []Implementation // impls[id-1]
	byTrait    map[string][]GlobalImplID
	implKeys   map[string]GlobalImplID
	assocs     []AssociatedTypeValue // assocs[id-1]
	assocIndex map[assocKey]AssocValueID
	traits     map[string]TraitDecl
	types      map[string]TypeDecl
	closures   map[ir.ClosureID]ClosureDecl
}

// Registry is the append-only declaration arena.
//
// Thread-safety: registration and lookups are guarded by a mutex, but
// solving is expected to read a Snapshot rather than the live registry.
type Registry struct {
	mu sync.RWMutex
	t  tables
}

// New creates an empty registry. Call RegisterBuiltins to add the
// language's built-in traits and implementations.
func New() *Registry {
	return &Registry{t: tables{
		byTrait:    make(map[string][]GlobalImplID),
		implKeys:   make(map[string]GlobalImplID),
		assocIndex: make(map[assocKey]AssocValueID),
		traits:     make(map[string]TraitDecl),
		types:      make(map[string]TypeDecl),
		closures:   make(map[ir.ClosureID]ClosureDecl),
	}}
}

// RegisterTrait declares a trait. Declaring an auto trait also registers
// its structural builtin.
func (r *Registry) RegisterTrait(d TraitDecl) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.t.traits[d.Name]; ok {
		fault(ErrCodeDuplicateDecl, "trait %s declared twice", d.Name)
	}
	d.Supertraits = slices.Clone(d.Supertraits)
	d.AssocTypes = slices.Clone(d.AssocTypes)
	r.t.traits[d.Name] = d
	if d.Auto {
		r.register(Builtin{Kind: AutoStructural, Trait: d.Name})
	}
}

// RegisterType declares a nominal type constructor.
func (r *Registry) RegisterType(d TypeDecl) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.t.types[d.Name]; ok {
		fault(ErrCodeDuplicateDecl, "type %s declared twice", d.Name)
	}
	r.t.types[d.Name] = d
}

// RegisterClosure declares a closure literal and synthesizes a
// ClosureCallImpl, with its Output value, for every call trait the
// closure's kind permits. It returns the implementation ids in
// Fn, FnMut, FnOnce order.
func (r *Registry) RegisterClosure(d ClosureDecl) []GlobalImplID {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.t.closures[d.ID]; ok {
		fault(ErrCodeDuplicateDecl, "closure#%d declared twice", d.ID)
	}
	r.t.closures[d.ID] = d

	var ids []GlobalImplID
	for _, trait := range FnTraits {
		if !d.Kind.Extends(trait) {
			continue
		}
		id := r.register(ClosureCallImpl{Closure: d.ID, CallTrait: trait})
		r.registerAssocValue(AssociatedTypeValue{Impl: id, Name: OutputAssoc, Value: d.Ret})
		ids = append(ids, id)
	}
	return ids
}

// Register adds an implementation and returns its flat id. It panics with
// *ConsistencyError on a duplicate or an undeclared trait.
func (r *Registry) Register(impl Implementation) GlobalImplID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(impl)
}

func (r *Registry) register(impl Implementation) GlobalImplID {
	if _, ok := r.t.traits[impl.TraitName()]; !ok {
		fault(ErrCodeUnknownTrait, "%s: trait %s is not declared", impl, impl.TraitName())
	}
	if c, ok := impl.(ClosureCallImpl); ok {
		if _, ok := r.t.closures[c.Closure]; !ok {
			fault(ErrCodeUnknownDecl, "%s: closure is not declared", impl)
		}
	}
	key := dedupeKey(impl)
	if prev, ok := r.t.implKeys[key]; ok {
		fault(ErrCodeDuplicateImpl, "%s already registered as %s", impl, prev)
	}

	r.t.impls = append(r.t.impls, impl)
	id := GlobalImplID(len(r.t.impls))
	r.t.implKeys[key] = id
	r.t.byTrait[impl.TraitName()] = append(r.t.byTrait[impl.TraitName()], id)
	return id
}

// RegisterAssocValue adds an associated type value and returns its flat id.
// It panics with *ConsistencyError if the impl is unknown, the trait has no
// such associated type, or the impl already binds the name.
func (r *Registry) RegisterAssocValue(v AssociatedTypeValue) AssocValueID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerAssocValue(v)
}

func (r *Registry) registerAssocValue(v AssociatedTypeValue) AssocValueID {
	impl := r.t.implementation(v.Impl)
	if !r.t.traits[impl.TraitName()].HasAssoc(v.Name) {
		fault(ErrCodeUnknownDecl, "trait %s has no associated type %s", impl.TraitName(), v.Name)
	}
	key := assocKey{impl: v.Impl, name: v.Name}
	if prev, ok := r.t.assocIndex[key]; ok {
		fault(ErrCodeDuplicateAssocValue, "%s already binds %s as %s", v.Impl, v.Name, prev)
	}

	r.t.assocs = append(r.t.assocs, v)
	id := AssocValueID(len(r.t.assocs))
	r.t.assocIndex[key] = id
	return id
}

// ImplementationsFor returns the implementations of trait in registration
// order.
func (r *Registry) ImplementationsFor(trait string) []GlobalImplID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.t.byTrait[trait])
}

// Implementation returns the implementation with the given id. It panics
// with *ConsistencyError if id was never issued.
func (r *Registry) Implementation(id GlobalImplID) Implementation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.t.implementation(id)
}

// AssocValue returns the associated type value with the given id. It
// panics with *ConsistencyError if id was never issued.
func (r *Registry) AssocValue(id AssocValueID) AssociatedTypeValue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.t.assocValue(id)
}

// Snapshot returns a read-only view of everything registered so far.
// Later registrations are invisible to it.
func (r *Registry) Snapshot() *View {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byTrait := make(map[string][]GlobalImplID, len(r.t.byTrait))
	for trait, ids := range r.t.byTrait {
		byTrait[trait] = slices.Clip(ids)
	}
	return &View{t: tables{
		impls:      slices.Clip(r.t.impls),
		byTrait:    byTrait,
		implKeys:   maps.Clone(r.t.implKeys),
		assocs:     slices.Clip(r.t.assocs),
		assocIndex: maps.Clone(r.t.assocIndex),
		traits:     maps.Clone(r.t.traits),
		types:      maps.Clone(r.t.types),
		closures:   maps.Clone(r.t.closures),
	}}
}

func (t *tables) implementation(id GlobalImplID) Implementation {
	if !id.IsValid() || int(id) > len(t.impls) {
		fault(ErrCodeUnknownImpl, "%s was never registered", id)
	}
	return t.impls[id-1]
}

func (t *tables) assocValue(id AssocValueID) AssociatedTypeValue {
	if !id.IsValid() || int(id) > len(t.assocs) {
		fault(ErrCodeUnknownAssocValue, "%s was never registered", id)
	}
	return t.assocs[id-1]
}
