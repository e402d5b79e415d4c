package registry

import "github.com/roach88/tsolve/internal/ir"

// Language trait names known to the builtins.
const (
	TraitDefault = "Default"
)

// LangTraits lists the traits RegisterBuiltins declares. Programs may not
// redeclare them.
var LangTraits = []string{TraitDefault, "Fn", "FnMut", "FnOnce"}

// NumericPrimitives lists the numeric primitives in a fixed order.
var NumericPrimitives = []string{
	"i8", "i16", "i32", "i64", "i128", "isize",
	"u8", "u16", "u32", "u64", "u128", "usize",
	"f32", "f64",
}

// RegisterBuiltins declares the language traits and registers the
// synthesized implementations: Default for every numeric primitive, and
// the call traits (with Output) for fn pointers. Calling it twice panics
// with *ConsistencyError.
func (r *Registry) RegisterBuiltins() {
	r.RegisterTrait(TraitDecl{Name: TraitDefault})

	// Fn: FnMut: FnOnce. Bound(1) is the argument tuple.
	callSuper := map[FnTrait]FnTrait{FnTraitFn: FnTraitFnMut, FnTraitFnMut: FnTraitFnOnce}
	for _, t := range FnTraits {
		decl := TraitDecl{Name: t.String(), Params: 1, AssocTypes: []string{OutputAssoc}}
		if super, ok := callSuper[t]; ok {
			decl.Supertraits = []ir.TraitRef{{Trait: super.String(), Self: ir.Bound(0), Args: []ir.Ty{ir.Bound(1)}}}
		}
		r.RegisterTrait(decl)
	}

	for _, name := range NumericPrimitives {
		r.Register(Builtin{Kind: NumericDefault, Trait: TraitDefault, Self: ir.App(name)})
	}

	for _, t := range FnTraits {
		id := r.Register(Builtin{Kind: FnPointerCall, Trait: t.String()})
		// FnPointerCall clauses bind the return type at Bound(0).
		r.RegisterAssocValue(AssociatedTypeValue{Impl: id, Name: OutputAssoc, Value: ir.Bound(0)})
	}
}
