package ir

import (
	"fmt"
	"strings"
)

// Substitution assigns a type to each canonical variable of a goal, in
// placeholder order. Values may mention canonical variables (TyInfer with
// Index < len(Values)) and solution-local fresh variables (Index >=
// len(Values)); Fresh counts the latter.
type Substitution struct {
	Values []Ty
	Fresh  int
}

// Identity returns the substitution mapping each of n variables to itself.
func Identity(vars []TyInfer) Substitution {
	values := make([]Ty, len(vars))
	for i, v := range vars {
		values[i] = TyInfer{Index: i, Kind: v.Kind}
	}
	return Substitution{Values: values}
}

// IsIdentity reports whether s binds nothing.
func (s Substitution) IsIdentity() bool {
	for i, v := range s.Values {
		iv, ok := v.(TyInfer)
		if !ok || iv.Index != i {
			return false
		}
	}
	return true
}

// Equal reports whether two substitutions are identical.
func (s Substitution) Equal(o Substitution) bool {
	return s.Fresh == o.Fresh && equalTys(s.Values, o.Values)
}

// ApplyToGoal instantiates g's canonical variables with s. Fresh variables
// are left as inference variables numbered from len(s.Values).
func (s Substitution) ApplyToGoal(g Goal) Goal {
	return MapGoal(g, func(t Ty) Ty { return s.ApplyToTy(t) })
}

// ApplyToTy instantiates t's canonical variables with s.
func (s Substitution) ApplyToTy(t Ty) Ty {
	return MapTy(t, func(n Ty) (Ty, bool) {
		if v, ok := n.(TyInfer); ok && v.Index < len(s.Values) {
			return s.Values[v.Index], true
		}
		return nil, false
	})
}

func (s Substitution) String() string {
	parts := make([]string, len(s.Values))
	for i, v := range s.Values {
		parts[i] = fmt.Sprintf("?%d := %s", i, v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Solution is a sealed interface over solver results.
// Only Unique, Ambiguous and NoSolution implement it.
type Solution interface {
	solutionNode() // Sealed - only these types implement it
	String() string
}

// Unique means exactly one satisfying assignment exists.
type Unique struct {
	Subst Substitution
}

func (Unique) solutionNode() {}

func (s Unique) String() string { return "Unique" + s.Subst.String() }

// Ambiguous means the goal may hold but no single assignment is proven.
type Ambiguous struct {
	Guidance Guidance
}

func (Ambiguous) solutionNode() {}

func (s Ambiguous) String() string { return "Ambiguous(" + s.Guidance.String() + ")" }

// NoSolution means the goal is provably unsatisfiable.
type NoSolution struct{}

func (NoSolution) solutionNode() {}

func (NoSolution) String() string { return "NoSolution" }

// Guidance is a sealed interface over information attached to an Ambiguous
// solution. Only Definite, Suggested and Unknown implement it.
type Guidance interface {
	guidanceNode() // Sealed - only these types implement it
	String() string
}

// Definite means every candidate agrees on the caller-visible variables.
type Definite struct {
	Subst Substitution
}

func (Definite) guidanceNode() {}

func (g Definite) String() string { return "Definite" + g.Subst.String() }

// Suggested is a plausible default that is not proven.
type Suggested struct {
	Subst Substitution
}

func (Suggested) guidanceNode() {}

func (g Suggested) String() string { return "Suggested" + g.Subst.String() }

// Unknown carries no usable information.
type Unknown struct{}

func (Unknown) guidanceNode() {}

func (Unknown) String() string { return "Unknown" }

// Solution kind labels used in logs, traces and harness expectations.
const (
	KindUnique    = "unique"
	KindAmbiguous = "ambiguous"
	KindNone      = "none"
)

// SolutionKind returns the label for s.
func SolutionKind(s Solution) string {
	switch s.(type) {
	case Unique:
		return KindUnique
	case Ambiguous:
		return KindAmbiguous
	default:
		return KindNone
	}
}

// GuidanceKind returns "definite", "suggested" or "unknown" for an
// ambiguous solution and "" otherwise.
func GuidanceKind(s Solution) string {
	amb, ok := s.(Ambiguous)
	if !ok {
		return ""
	}
	switch amb.Guidance.(type) {
	case Definite:
		return "definite"
	case Suggested:
		return "suggested"
	default:
		return "unknown"
	}
}

// EqualSolution reports whether two solutions are identical.
func EqualSolution(a, b Solution) bool {
	switch x := a.(type) {
	case Unique:
		y, ok := b.(Unique)
		return ok && x.Subst.Equal(y.Subst)
	case Ambiguous:
		y, ok := b.(Ambiguous)
		if !ok {
			return false
		}
		switch gx := x.Guidance.(type) {
		case Definite:
			gy, ok := y.Guidance.(Definite)
			return ok && gx.Subst.Equal(gy.Subst)
		case Suggested:
			gy, ok := y.Guidance.(Suggested)
			return ok && gx.Subst.Equal(gy.Subst)
		default:
			_, ok := y.Guidance.(Unknown)
			return ok
		}
	case NoSolution:
		_, ok := b.(NoSolution)
		return ok
	default:
		return false
	}
}
