package ir

import (
	"slices"
	"unicode/utf16"
)

// IRValue is a sealed interface over the values canonical JSON is built
// from. Only IRString, IRInt, IRBool, IRArray and IRObject implement it.
// There is no null and no float: neither has a canonical form.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRString is a string value.
type IRString string

func (IRString) irValue() {}

// IRInt is an integer value.
type IRInt int64

func (IRInt) irValue() {}

// IRBool is a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray is an ordered list of values.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject maps string keys to values.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's native string order compares UTF-8 bytes and differs for keys
// outside the BMP.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

func irTys(tys []Ty) IRArray {
	arr := make(IRArray, len(tys))
	for i, t := range tys {
		arr[i] = TyToIR(t)
	}
	return arr
}

// TyToIR converts a type term to its canonical value form.
func TyToIR(t Ty) IRValue {
	switch ty := t.(type) {
	case TyApp:
		return IRObject{"k": IRString("app"), "name": IRString(ty.Name), "args": irTys(ty.Args)}
	case TyParam:
		return IRObject{"k": IRString("param"), "name": IRString(ty.Name)}
	case TyBound:
		return IRObject{"k": IRString("bound"), "index": IRInt(ty.Index)}
	case TyInfer:
		return IRObject{"k": IRString("infer"), "index": IRInt(ty.Index), "kind": IRString(ty.Kind.String())}
	case TyProjection:
		return IRObject{
			"k":     IRString("proj"),
			"trait": IRString(ty.Trait),
			"assoc": IRString(ty.Assoc),
			"self":  TyToIR(ty.Self),
			"args":  irTys(ty.Args),
		}
	case TyFn:
		return IRObject{"k": IRString("fn"), "params": irTys(ty.Params), "ret": TyToIR(ty.Ret)}
	case TyClosure:
		return IRObject{"k": IRString("closure"), "id": IRInt(ty.ID)}
	default:
		return IRObject{"k": IRString("invalid")}
	}
}

// GoalToIR converts a goal to its canonical value form.
func GoalToIR(g Goal) IRValue {
	switch goal := g.(type) {
	case TraitGoal:
		return IRObject{
			"k":     IRString("trait"),
			"trait": IRString(goal.Ref.Trait),
			"self":  TyToIR(goal.Ref.Self),
			"args":  irTys(goal.Ref.Args),
		}
	case ProjectionGoal:
		return IRObject{
			"k":          IRString("projection"),
			"projection": TyToIR(goal.Projection),
			"expected":   TyToIR(goal.Expected),
		}
	case WellFormedGoal:
		return IRObject{"k": IRString("wf"), "ty": TyToIR(goal.Ty)}
	default:
		return IRObject{"k": IRString("invalid")}
	}
}

// ClauseToIR converts a clause to its canonical value form. Origin is a
// display label and does not take part.
func ClauseToIR(c Clause) IRValue {
	conds := make(IRArray, len(c.Conditions))
	for i, g := range c.Conditions {
		conds[i] = GoalToIR(g)
	}
	return IRObject{
		"binders":    IRInt(c.Binders),
		"head":       GoalToIR(c.Head),
		"conditions": conds,
		"default":    IRBool(c.Default),
	}
}

func substToIR(s Substitution) IRValue {
	return IRObject{"values": irTys(s.Values), "fresh": IRInt(s.Fresh)}
}

// SolutionToIR converts a solution to its canonical value form.
func SolutionToIR(s Solution) IRValue {
	switch sol := s.(type) {
	case Unique:
		return IRObject{"k": IRString(KindUnique), "subst": substToIR(sol.Subst)}
	case Ambiguous:
		var guidance IRObject
		switch g := sol.Guidance.(type) {
		case Definite:
			guidance = IRObject{"k": IRString("definite"), "subst": substToIR(g.Subst)}
		case Suggested:
			guidance = IRObject{"k": IRString("suggested"), "subst": substToIR(g.Subst)}
		default:
			guidance = IRObject{"k": IRString("unknown")}
		}
		return IRObject{"k": IRString(KindAmbiguous), "guidance": guidance}
	default:
		return IRObject{"k": IRString(KindNone)}
	}
}
