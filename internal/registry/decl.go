package registry

import "github.com/roach88/tsolve/internal/ir"

// Binder conventions for declarations:
//   - in a TraitDecl, Bound(0) is Self and Bound(1..Params) are the trait
//     parameters
//   - in a TypeDecl, Bound(i) is the i-th type parameter

// TraitDecl declares a trait.
type TraitDecl struct {
	Name string

	// Params is the number of trait parameters besides Self.
	Params int

	// Supertraits must hold whenever the trait holds.
	Supertraits []ir.TraitRef

	// AssocTypes names the trait's associated types.
	AssocTypes []string

	// Auto marks a coinductive marker trait that holds structurally for any
	// type whose components satisfy it.
	Auto bool
}

// HasAssoc reports whether the trait declares the associated type.
func (d TraitDecl) HasAssoc(name string) bool {
	for _, a := range d.AssocTypes {
		if a == name {
			return true
		}
	}
	return false
}

// TypeDecl declares a nominal type constructor.
type TypeDecl struct {
	Name   string
	Params []string

	// Where bounds must hold for the type to be well formed.
	Where []ir.TraitRef

	// Fields are the component types auto traits recurse into.
	Fields []ir.Ty
}

// FnTrait is one of the call traits a closure or fn pointer can satisfy.
type FnTrait int

const (
	FnTraitFn FnTrait = iota
	FnTraitFnMut
	FnTraitFnOnce
)

// FnTraits lists call traits from most to least restrictive.
var FnTraits = []FnTrait{FnTraitFn, FnTraitFnMut, FnTraitFnOnce}

// OutputAssoc is the associated type carrying a call trait's return type.
const OutputAssoc = "Output"

func (t FnTrait) String() string {
	switch t {
	case FnTraitFn:
		return "Fn"
	case FnTraitFnMut:
		return "FnMut"
	default:
		return "FnOnce"
	}
}

// ParseFnTrait maps a trait name to a call trait.
func ParseFnTrait(name string) (FnTrait, bool) {
	for _, t := range FnTraits {
		if t.String() == name {
			return t, true
		}
	}
	return 0, false
}

// Extends reports whether a closure of kind t also implements other. A Fn
// closure implements all three call traits, FnMut implements FnMut and
// FnOnce, FnOnce only itself.
func (t FnTrait) Extends(other FnTrait) bool {
	return other >= t
}

// ClosureDecl describes one closure literal's signature.
type ClosureDecl struct {
	ID     ir.ClosureID
	Params []ir.Ty
	Ret    ir.Ty
	Kind   FnTrait
}
