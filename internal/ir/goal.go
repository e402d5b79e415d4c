package ir

import "strings"

// TraitRef is a trait applied to a self type and further trait arguments,
// read as "Self: Trait<Args>".
type TraitRef struct {
	Trait string
	Self  Ty
	Args  []Ty
}

func (r TraitRef) String() string {
	var b strings.Builder
	b.WriteString(r.Self.String())
	b.WriteString(": ")
	b.WriteString(r.Trait)
	if len(r.Args) > 0 {
		b.WriteString("<")
		b.WriteString(joinTys(r.Args))
		b.WriteString(">")
	}
	return b.String()
}

// Projection builds the projection of assoc out of this trait reference.
func (r TraitRef) Projection(assoc string) TyProjection {
	return TyProjection{Trait: r.Trait, Assoc: assoc, Self: r.Self, Args: r.Args}
}

// MapTraitRef applies f to every type in r.
func MapTraitRef(r TraitRef, f func(Ty) Ty) TraitRef {
	args := make([]Ty, len(r.Args))
	for i, a := range r.Args {
		args[i] = f(a)
	}
	if r.Args == nil {
		args = nil
	}
	return TraitRef{Trait: r.Trait, Self: f(r.Self), Args: args}
}

// Goal is a sealed interface over obligations: something to be proven.
// Only TraitGoal, ProjectionGoal and WellFormedGoal implement it.
type Goal interface {
	goalNode() // Sealed - only these types implement it
	String() string
}

// TraitGoal holds when Ref.Self implements Ref.Trait with Ref.Args.
type TraitGoal struct {
	Ref TraitRef
}

func (TraitGoal) goalNode() {}

func (g TraitGoal) String() string { return g.Ref.String() }

// ProjectionGoal holds when Projection normalises to Expected.
type ProjectionGoal struct {
	Projection TyProjection
	Expected   Ty
}

func (ProjectionGoal) goalNode() {}

func (g ProjectionGoal) String() string {
	return g.Projection.String() + " == " + g.Expected.String()
}

// WellFormedGoal holds when every bound required by Ty's declarations holds.
type WellFormedGoal struct {
	Ty Ty
}

func (WellFormedGoal) goalNode() {}

func (g WellFormedGoal) String() string { return "WF(" + g.Ty.String() + ")" }

// MapGoal applies f to every type in g.
func MapGoal(g Goal, f func(Ty) Ty) Goal {
	switch goal := g.(type) {
	case TraitGoal:
		return TraitGoal{Ref: MapTraitRef(goal.Ref, f)}
	case ProjectionGoal:
		ref := MapTraitRef(goal.Projection.TraitRef(), f)
		return ProjectionGoal{
			Projection: ref.Projection(goal.Projection.Assoc),
			Expected:   f(goal.Expected),
		}
	case WellFormedGoal:
		return WellFormedGoal{Ty: f(goal.Ty)}
	default:
		return g
	}
}

// GoalTys returns the types of g in canonical order: self, trait args,
// expected. This order fixes placeholder numbering.
func GoalTys(g Goal) []Ty {
	switch goal := g.(type) {
	case TraitGoal:
		return append([]Ty{goal.Ref.Self}, goal.Ref.Args...)
	case ProjectionGoal:
		tys := append([]Ty{goal.Projection.Self}, goal.Projection.Args...)
		return append(tys, goal.Expected)
	case WellFormedGoal:
		return []Ty{goal.Ty}
	default:
		return nil
	}
}

// GoalTrait returns the trait a goal is about, or "" for well-formedness.
func GoalTrait(g Goal) string {
	switch goal := g.(type) {
	case TraitGoal:
		return goal.Ref.Trait
	case ProjectionGoal:
		return goal.Projection.Trait
	default:
		return ""
	}
}

// SubstBoundGoal replaces binder variables throughout g.
func SubstBoundGoal(g Goal, values []Ty) Goal {
	return MapGoal(g, func(t Ty) Ty { return SubstBound(t, values) })
}

// Clause is a program clause: forall Binders. Head :- Conditions.
// Head is a TraitGoal or a ProjectionGoal.
type Clause struct {
	Binders    int
	Head       Goal
	Conditions []Goal

	// Default marks a clause as a reasonable default when it competes with
	// other candidates (see Suggested guidance).
	Default bool

	// Origin is a short human label used in logs and traces.
	Origin string
}

func (c Clause) String() string {
	if len(c.Conditions) == 0 {
		return c.Head.String()
	}
	conds := make([]string, len(c.Conditions))
	for i, g := range c.Conditions {
		conds[i] = g.String()
	}
	return c.Head.String() + " :- " + strings.Join(conds, ", ")
}

// Environment is an immutable set of clauses assumed true for one checking
// context. Construct with NewEnvironment; it copies its input.
type Environment struct {
	clauses []Clause
}

// NewEnvironment creates an environment holding a private copy of clauses.
func NewEnvironment(clauses []Clause) *Environment {
	cp := make([]Clause, len(clauses))
	copy(cp, clauses)
	return &Environment{clauses: cp}
}

// EmptyEnvironment returns an environment with no assumptions.
func EmptyEnvironment() *Environment {
	return &Environment{}
}

// Len returns the number of clauses.
func (e *Environment) Len() int {
	if e == nil {
		return 0
	}
	return len(e.clauses)
}

// Clause returns clause i in declaration order.
func (e *Environment) Clause(i int) Clause {
	return e.clauses[i]
}

// Clauses returns a copy of all clauses in declaration order.
func (e *Environment) Clauses() []Clause {
	if e == nil {
		return nil
	}
	cp := make([]Clause, len(e.clauses))
	copy(cp, e.clauses)
	return cp
}

// InEnvironment pairs a value (usually a goal) with the environment it is
// to be proven in.
type InEnvironment[G any] struct {
	Env  *Environment
	Goal G
}

// NewInEnvironment pairs goal with env. A nil env is treated as empty.
func NewInEnvironment[G any](env *Environment, goal G) InEnvironment[G] {
	if env == nil {
		env = EmptyEnvironment()
	}
	return InEnvironment[G]{Env: env, Goal: goal}
}
