package registry

import (
	"fmt"

	"github.com/roach88/tsolve/internal/ir"
)

// Implementation is a closed variant over the ways a trait can be
// implemented. Only UserDeclared, Builtin and ClosureCallImpl implement it.
type Implementation interface {
	implNode() // Sealed - only these types implement it
	TraitName() string
	String() string
}

// UserDeclared is an explicit implementation block.
//
// Trait is the implemented trait reference written over binder variables
// Bound(0..Binders-1); Where lists the block's bounds over the same
// binders.
type UserDeclared struct {
	Key     ImplKey
	Binders int
	Trait   ir.TraitRef
	Where   []ir.Goal

	// Default marks the impl as a reasonable default among ambiguous
	// candidates.
	Default bool
}

func (UserDeclared) implNode() {}

// TraitName returns the implemented trait.
func (u UserDeclared) TraitName() string { return u.Trait.Trait }

func (u UserDeclared) String() string {
	return fmt.Sprintf("impl %s [%s]", u.Trait, u.Key)
}

// BuiltinKind selects a synthesized rule.
type BuiltinKind int

const (
	// NumericDefault implements Default for one numeric primitive.
	NumericDefault BuiltinKind = iota + 1

	// FnPointerCall implements a call trait for every fn pointer type.
	FnPointerCall

	// AutoStructural implements an auto trait for any type whose
	// components implement it.
	AutoStructural
)

func (k BuiltinKind) String() string {
	switch k {
	case NumericDefault:
		return "numeric-default"
	case FnPointerCall:
		return "fn-pointer-call"
	case AutoStructural:
		return "auto-structural"
	default:
		return fmt.Sprintf("builtin(%d)", int(k))
	}
}

// Builtin is an implementation synthesized for primitive behaviour.
// Self is set only for kinds that cover one fixed type (NumericDefault).
type Builtin struct {
	Kind  BuiltinKind
	Trait string
	Self  ir.Ty
}

func (Builtin) implNode() {}

// TraitName returns the implemented trait.
func (b Builtin) TraitName() string { return b.Trait }

func (b Builtin) String() string {
	if b.Self != nil {
		return fmt.Sprintf("builtin %s %s for %s", b.Kind, b.Trait, b.Self)
	}
	return fmt.Sprintf("builtin %s %s", b.Kind, b.Trait)
}

// ClosureCallImpl lets one closure literal satisfy one call trait. The
// signature is read from the closure's ClosureDecl.
type ClosureCallImpl struct {
	Closure   ir.ClosureID
	CallTrait FnTrait
}

func (ClosureCallImpl) implNode() {}

// TraitName returns the implemented call trait.
func (c ClosureCallImpl) TraitName() string { return c.CallTrait.String() }

func (c ClosureCallImpl) String() string {
	return fmt.Sprintf("%s for closure#%d", c.CallTrait, c.Closure)
}

// AssociatedTypeValue binds an associated type name within one
// implementation. Value is written over the implementation's binders.
type AssociatedTypeValue struct {
	Impl  GlobalImplID
	Name  string
	Value ir.Ty
}

// dedupeKey identifies an implementation within its own kind.
func dedupeKey(impl Implementation) string {
	switch im := impl.(type) {
	case UserDeclared:
		return "user/" + im.Key.String()
	case Builtin:
		self := ""
		if im.Self != nil {
			self = im.Self.String()
		}
		return fmt.Sprintf("builtin/%s/%s/%s", im.Kind, im.Trait, self)
	case ClosureCallImpl:
		return fmt.Sprintf("closure/%d/%s", im.Closure, im.CallTrait)
	default:
		return fmt.Sprintf("unknown/%T", impl)
	}
}

// boundsFrom returns Bound(from), ..., Bound(from+n-1).
func boundsFrom(from, n int) []ir.Ty {
	tys := make([]ir.Ty, n)
	for i := range tys {
		tys[i] = ir.Bound(from + i)
	}
	return tys
}

// implClause reconstructs the clause impl contributes for a goal whose self
// type is self. Shape-polymorphic builtins generalise self's constructor;
// the others ignore it. ok is false when impl cannot apply to self at all.
func (t *tables) implClause(id GlobalImplID, impl Implementation, self ir.Ty) (ir.Clause, bool) {
	origin := fmt.Sprintf("%s %s", id, impl)
	switch im := impl.(type) {
	case UserDeclared:
		return ir.Clause{
			Binders:    im.Binders,
			Head:       ir.TraitGoal{Ref: im.Trait},
			Conditions: im.Where,
			Default:    im.Default,
			Origin:     origin,
		}, true

	case Builtin:
		switch im.Kind {
		case NumericDefault:
			return ir.Clause{
				Head:    ir.TraitGoal{Ref: ir.TraitRef{Trait: im.Trait, Self: im.Self}},
				Default: true,
				Origin:  origin,
			}, true
		case FnPointerCall:
			fn, ok := self.(ir.TyFn)
			if !ok {
				return ir.Clause{}, false
			}
			// Bound(0) is the return type, Bound(1..n) the parameters.
			params := boundsFrom(1, len(fn.Params))
			return ir.Clause{
				Binders: len(params) + 1,
				Head: ir.TraitGoal{Ref: ir.TraitRef{
					Trait: im.Trait,
					Self:  ir.Fn(params, ir.Bound(0)),
					Args:  []ir.Ty{ir.Tuple(params...)},
				}},
				Default: true,
				Origin:  origin,
			}, true
		case AutoStructural:
			return t.autoClause(im.Trait, self, origin)
		}
		return ir.Clause{}, false

	case ClosureCallImpl:
		decl, ok := t.closures[im.Closure]
		if !ok {
			fault(ErrCodeUnknownDecl, "closure#%d has no declaration", im.Closure)
		}
		return ir.Clause{
			Head: ir.TraitGoal{Ref: ir.TraitRef{
				Trait: im.CallTrait.String(),
				Self:  ir.TyClosure{ID: im.Closure},
				Args:  []ir.Ty{ir.Tuple(decl.Params...)},
			}},
			Origin: origin,
		}, true
	}
	return ir.Clause{}, false
}

// autoClause builds the structural rule for an auto trait: a type
// implements it when each of its components does.
func (t *tables) autoClause(trait string, self ir.Ty, origin string) (ir.Clause, bool) {
	holds := func(ty ir.Ty) ir.Goal {
		return ir.TraitGoal{Ref: ir.TraitRef{Trait: trait, Self: ty}}
	}
	switch ty := self.(type) {
	case ir.TyApp:
		params := boundsFrom(0, len(ty.Args))
		head := holds(ir.App(ty.Name, params...))
		var conds []ir.Goal
		if decl, ok := t.types[ty.Name]; ok {
			if len(decl.Params) != len(ty.Args) {
				return ir.Clause{}, false
			}
			for _, f := range decl.Fields {
				conds = append(conds, holds(f))
			}
		} else {
			for _, p := range params {
				conds = append(conds, holds(p))
			}
		}
		return ir.Clause{Binders: len(params), Head: head, Conditions: conds, Origin: origin}, true
	case ir.TyFn:
		params := boundsFrom(1, len(ty.Params))
		return ir.Clause{
			Binders: len(params) + 1,
			Head:    holds(ir.Fn(params, ir.Bound(0))),
			Origin:  origin,
		}, true
	case ir.TyClosure:
		return ir.Clause{Head: holds(ty), Origin: origin}, true
	default:
		// Parameters and projections only satisfy auto traits through the
		// environment.
		return ir.Clause{}, false
	}
}

// assocClause turns an impl clause into the projection clause for one of
// its associated values: same binders and conditions, with the head
// <Self: Trait<Args>>::Name == Value.
func assocClause(implClause ir.Clause, v AssociatedTypeValue, id AssocValueID) ir.Clause {
	head := implClause.Head.(ir.TraitGoal)
	return ir.Clause{
		Binders: implClause.Binders,
		Head: ir.ProjectionGoal{
			Projection: head.Ref.Projection(v.Name),
			Expected:   v.Value,
		},
		Conditions: implClause.Conditions,
		Default:    implClause.Default,
		Origin:     fmt.Sprintf("%s %s of %s", id, v.Name, implClause.Origin),
	}
}
