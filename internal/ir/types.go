package ir

import (
	"fmt"
	"strings"
)

// Ty is a sealed interface over type terms.
// Only TyApp, TyParam, TyBound, TyInfer, TyProjection, TyFn and TyClosure
// implement it.
type Ty interface {
	tyNode() // Sealed - only these types implement it
	String() string
}

// TupleName is the constructor name used for tuple types, including the
// unit type (a tuple with no elements).
const TupleName = "()"

// TyApp is a nominal or primitive type constructor applied to arguments
// (e.g. "i32", "Vec<T>", tuples under TupleName).
type TyApp struct {
	Name string
	Args []Ty
}

func (TyApp) tyNode() {}

func (t TyApp) String() string {
	if t.Name == TupleName {
		return "(" + joinTys(t.Args) + ")"
	}
	if len(t.Args) == 0 {
		return t.Name
	}
	return t.Name + "<" + joinTys(t.Args) + ">"
}

// TyParam is a rigid generic parameter of a checking context. Inside the
// context it is an unknown but fixed type: it unifies only with itself or
// with an inference variable.
type TyParam struct {
	Name string
}

func (TyParam) tyNode() {}

func (t TyParam) String() string { return t.Name }

// TyBound is a variable bound by a clause or impl binder. Binders are flat:
// an impl with N generic parameters binds indices 0..N-1.
type TyBound struct {
	Index int
}

func (TyBound) tyNode() {}

func (t TyBound) String() string { return fmt.Sprintf("^%d", t.Index) }

// VarKind restricts which types an inference variable may take.
type VarKind int

const (
	// VarGeneral may be bound to any type.
	VarGeneral VarKind = iota
	// VarInteger may only be bound to integer primitives.
	VarInteger
	// VarFloat may only be bound to floating point primitives.
	VarFloat
)

func (k VarKind) String() string {
	switch k {
	case VarInteger:
		return "int"
	case VarFloat:
		return "float"
	default:
		return "type"
	}
}

// TyInfer is an existential inference variable standing for a type to be
// inferred.
type TyInfer struct {
	Index int
	Kind  VarKind
}

func (TyInfer) tyNode() {}

func (t TyInfer) String() string {
	switch t.Kind {
	case VarInteger:
		return fmt.Sprintf("?%di", t.Index)
	case VarFloat:
		return fmt.Sprintf("?%df", t.Index)
	default:
		return fmt.Sprintf("?%d", t.Index)
	}
}

// TyProjection is an associated type projection <Self as Trait<Args>>::Assoc.
type TyProjection struct {
	Trait string
	Assoc string
	Self  Ty
	Args  []Ty
}

func (TyProjection) tyNode() {}

func (t TyProjection) String() string {
	return "<" + t.TraitRef().String() + ">::" + t.Assoc
}

// TraitRef returns the trait reference the projection is taken from.
func (t TyProjection) TraitRef() TraitRef {
	return TraitRef{Trait: t.Trait, Self: t.Self, Args: t.Args}
}

// TyFn is a function pointer type.
type TyFn struct {
	Params []Ty
	Ret    Ty
}

func (TyFn) tyNode() {}

func (t TyFn) String() string {
	return "fn(" + joinTys(t.Params) + ") -> " + t.Ret.String()
}

// ClosureID identifies one closure literal. It is assigned by the front end
// and is unique per program.
type ClosureID uint32

// TyClosure is the unique, unnameable type of one closure literal.
type TyClosure struct {
	ID ClosureID
}

func (TyClosure) tyNode() {}

func (t TyClosure) String() string { return fmt.Sprintf("closure#%d", t.ID) }

// App builds a TyApp.
func App(name string, args ...Ty) TyApp {
	return TyApp{Name: name, Args: args}
}

// Tuple builds a tuple type.
func Tuple(elems ...Ty) TyApp {
	return TyApp{Name: TupleName, Args: elems}
}

// Param builds a rigid generic parameter.
func Param(name string) TyParam {
	return TyParam{Name: name}
}

// Bound builds a binder variable.
func Bound(index int) TyBound {
	return TyBound{Index: index}
}

// Infer builds a general inference variable.
func Infer(index int) TyInfer {
	return TyInfer{Index: index}
}

// Fn builds a function pointer type.
func Fn(params []Ty, ret Ty) TyFn {
	return TyFn{Params: params, Ret: ret}
}

func joinTys(tys []Ty) string {
	parts := make([]string, len(tys))
	for i, t := range tys {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// IntegerPrimitives lists primitive names an integer inference variable may
// take.
var IntegerPrimitives = map[string]bool{
	"i8": true, "i16": true, "i32": true, "i64": true, "i128": true, "isize": true,
	"u8": true, "u16": true, "u32": true, "u64": true, "u128": true, "usize": true,
}

// FloatPrimitives lists primitive names a float inference variable may take.
var FloatPrimitives = map[string]bool{
	"f32": true, "f64": true,
}

// AdmitsKind reports whether t may be assigned to a variable of kind k.
// Only applications are checked; other shapes are accepted for general
// variables and rejected for numeric ones.
func AdmitsKind(k VarKind, t Ty) bool {
	switch k {
	case VarInteger:
		app, ok := t.(TyApp)
		return ok && len(app.Args) == 0 && IntegerPrimitives[app.Name]
	case VarFloat:
		app, ok := t.(TyApp)
		return ok && len(app.Args) == 0 && FloatPrimitives[app.Name]
	default:
		return true
	}
}

// MapTy rebuilds t bottom-up. f is consulted first for every node; when it
// returns true its result replaces the node and children are not visited.
func MapTy(t Ty, f func(Ty) (Ty, bool)) Ty {
	if t == nil {
		return nil
	}
	if r, ok := f(t); ok {
		return r
	}
	switch ty := t.(type) {
	case TyApp:
		return TyApp{Name: ty.Name, Args: mapTys(ty.Args, f)}
	case TyProjection:
		return TyProjection{
			Trait: ty.Trait,
			Assoc: ty.Assoc,
			Self:  MapTy(ty.Self, f),
			Args:  mapTys(ty.Args, f),
		}
	case TyFn:
		return TyFn{Params: mapTys(ty.Params, f), Ret: MapTy(ty.Ret, f)}
	default:
		return t
	}
}

func mapTys(tys []Ty, f func(Ty) (Ty, bool)) []Ty {
	if tys == nil {
		return nil
	}
	out := make([]Ty, len(tys))
	for i, t := range tys {
		out[i] = MapTy(t, f)
	}
	return out
}

// WalkTy visits t in pre-order, left to right. Returning false from visit
// stops descent into that node's children.
func WalkTy(t Ty, visit func(Ty) bool) {
	if t == nil || !visit(t) {
		return
	}
	switch ty := t.(type) {
	case TyApp:
		for _, a := range ty.Args {
			WalkTy(a, visit)
		}
	case TyProjection:
		WalkTy(ty.Self, visit)
		for _, a := range ty.Args {
			WalkTy(a, visit)
		}
	case TyFn:
		for _, p := range ty.Params {
			WalkTy(p, visit)
		}
		WalkTy(ty.Ret, visit)
	}
}

// EqualTy reports structural equality.
func EqualTy(a, b Ty) bool {
	switch x := a.(type) {
	case TyApp:
		y, ok := b.(TyApp)
		return ok && x.Name == y.Name && equalTys(x.Args, y.Args)
	case TyParam:
		y, ok := b.(TyParam)
		return ok && x.Name == y.Name
	case TyBound:
		y, ok := b.(TyBound)
		return ok && x.Index == y.Index
	case TyInfer:
		y, ok := b.(TyInfer)
		return ok && x.Index == y.Index && x.Kind == y.Kind
	case TyProjection:
		y, ok := b.(TyProjection)
		return ok && x.Trait == y.Trait && x.Assoc == y.Assoc &&
			EqualTy(x.Self, y.Self) && equalTys(x.Args, y.Args)
	case TyFn:
		y, ok := b.(TyFn)
		return ok && equalTys(x.Params, y.Params) && EqualTy(x.Ret, y.Ret)
	case TyClosure:
		y, ok := b.(TyClosure)
		return ok && x.ID == y.ID
	case nil:
		return b == nil
	default:
		return false
	}
}

func equalTys(a, b []Ty) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !EqualTy(a[i], b[i]) {
			return false
		}
	}
	return true
}

// HasInfer reports whether t mentions any inference variable.
func HasInfer(t Ty) bool {
	found := false
	WalkTy(t, func(n Ty) bool {
		if _, ok := n.(TyInfer); ok {
			found = true
		}
		return !found
	})
	return found
}

// SubstBound replaces binder variables with the given values. Indices out
// of range are left untouched.
func SubstBound(t Ty, values []Ty) Ty {
	return MapTy(t, func(n Ty) (Ty, bool) {
		if b, ok := n.(TyBound); ok && b.Index < len(values) {
			return values[b.Index], true
		}
		return nil, false
	})
}
