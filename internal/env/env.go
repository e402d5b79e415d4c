// Package env builds the immutable environment of assumed clauses for one
// checking context from the bounds on its generic parameters.
package env

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/tsolve/internal/ir"
	"github.com/roach88/tsolve/internal/registry"
)

// AssocEq is an associated-type equality written inside a bound, as in
// T: Iterator<Item = u32>.
type AssocEq struct {
	Name string
	Ty   ir.Ty
}

// Bound is one generic bound of a checking context.
type Bound struct {
	Self     ir.Ty
	Trait    string
	Args     []ir.Ty
	AssocEqs []AssocEq
}

// Ref returns the trait reference the bound asserts.
func (b Bound) Ref() ir.TraitRef {
	return ir.TraitRef{Trait: b.Trait, Self: b.Self, Args: b.Args}
}

func (b Bound) String() string {
	s := b.Ref().String()
	if len(b.AssocEqs) == 0 {
		return s
	}
	eqs := make([]string, len(b.AssocEqs))
	for i, eq := range b.AssocEqs {
		eqs[i] = eq.Name + " = " + eq.Ty.String()
	}
	return s + " [" + strings.Join(eqs, ", ") + "]"
}

// Context is a checking context such as a generic function body.
type Context struct {
	Name   string
	Params []string
	Bounds []Bound
}

// TraitLookup resolves trait declarations. *registry.View implements it.
type TraitLookup interface {
	Trait(name string) (registry.TraitDecl, bool)
}

// ErrUnknownTrait is returned when a bound names a trait the registry does
// not declare.
var ErrUnknownTrait = errors.New("unknown trait")

// BoundError reports a bound the builder could not translate.
type BoundError struct {
	Context string
	Bound   string
	Err     error
}

func (e *BoundError) Error() string {
	return fmt.Sprintf("context %s: bound %s: %v", e.Context, e.Bound, e.Err)
}

func (e *BoundError) Unwrap() error { return e.Err }

// Build translates ctx's bounds into an environment. For each bound it
// emits, in order:
//   - the fact Self: Trait<Args>
//   - one projection fact per associated-type equality
//   - the fact for every supertrait reachable from the bound, transitively
//
// followed by one implication clause forall X. X: Super :- X: Sub for every
// supertrait edge among the traits reached. Clauses are not deduplicated.
func Build(ctx Context, traits TraitLookup) (*ir.Environment, error) {
	var facts []ir.Clause
	var rules []ir.Clause
	ruled := map[string]bool{}

	for _, b := range ctx.Bounds {
		decl, ok := traits.Trait(b.Trait)
		if !ok {
			return nil, &BoundError{Context: ctx.Name, Bound: b.String(), Err: ErrUnknownTrait}
		}
		origin := fmt.Sprintf("bound %s in %s", b.Ref(), ctx.Name)
		facts = append(facts, ir.Clause{Head: ir.TraitGoal{Ref: b.Ref()}, Origin: origin})

		for _, eq := range b.AssocEqs {
			if !decl.HasAssoc(eq.Name) {
				return nil, &BoundError{
					Context: ctx.Name,
					Bound:   b.String(),
					Err:     fmt.Errorf("trait %s has no associated type %s", b.Trait, eq.Name),
				}
			}
			facts = append(facts, ir.Clause{
				Head:   ir.ProjectionGoal{Projection: b.Ref().Projection(eq.Name), Expected: eq.Ty},
				Origin: origin,
			})
		}

		elaborated, err := elaborate(b.Ref(), traits)
		if err != nil {
			return nil, &BoundError{Context: ctx.Name, Bound: b.String(), Err: err}
		}
		for _, ref := range elaborated {
			facts = append(facts, ir.Clause{
				Head:   ir.TraitGoal{Ref: ref},
				Origin: fmt.Sprintf("supertrait of %s", origin),
			})
		}

		reached := append([]ir.TraitRef{b.Ref()}, elaborated...)
		for _, ref := range reached {
			if ruled[ref.Trait] {
				continue
			}
			ruled[ref.Trait] = true
			sub, _ := traits.Trait(ref.Trait)
			rules = append(rules, implications(sub)...)
		}
	}

	return ir.NewEnvironment(append(facts, rules...)), nil
}

// elaborate returns every supertrait reference implied by ref, in
// breadth-first declaration order. Each distinct reference appears once, so
// cyclic supertrait declarations terminate.
func elaborate(ref ir.TraitRef, traits TraitLookup) ([]ir.TraitRef, error) {
	seen := map[string]bool{ref.String(): true}
	queue := []ir.TraitRef{ref}
	var out []ir.TraitRef

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		decl, ok := traits.Trait(cur.Trait)
		if !ok {
			return nil, fmt.Errorf("%w %s", ErrUnknownTrait, cur.Trait)
		}
		binders := append([]ir.Ty{cur.Self}, cur.Args...)
		for _, super := range decl.Supertraits {
			next := ir.MapTraitRef(super, func(t ir.Ty) ir.Ty { return ir.SubstBound(t, binders) })
			if seen[next.String()] {
				continue
			}
			seen[next.String()] = true
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	return out, nil
}

// implications returns the clauses forall Self, Params. Self: Super :-
// Self: Sub for each direct supertrait of sub.
func implications(sub registry.TraitDecl) []ir.Clause {
	if len(sub.Supertraits) == 0 {
		return nil
	}
	args := make([]ir.Ty, sub.Params)
	for i := range args {
		args[i] = ir.Bound(i + 1)
	}
	cond := ir.TraitGoal{Ref: ir.TraitRef{Trait: sub.Name, Self: ir.Bound(0), Args: args}}

	clauses := make([]ir.Clause, 0, len(sub.Supertraits))
	for _, super := range sub.Supertraits {
		clauses = append(clauses, ir.Clause{
			Binders:    sub.Params + 1,
			Head:       ir.TraitGoal{Ref: super},
			Conditions: []ir.Goal{cond},
			Origin:     fmt.Sprintf("%s implies %s", sub.Name, super.Trait),
		})
	}
	return clauses
}
