package solver

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tsolve/internal/env"
	"github.com/roach88/tsolve/internal/ir"
	"github.com/roach88/tsolve/internal/registry"
)

// richFixture mixes impls, where clauses, projections and an environment.
func richFixture(t *testing.T) (*fixture, *ir.Environment, []ir.Goal) {
	f := newFixture(t)
	f.impl("Clone", 0, i32, nil)
	f.impl("Clone", 1, ir.App("Vec", ir.Bound(0)), nil, holds("Clone", ir.Bound(0)))
	f.impl("Conv", 0, u8, []ir.Ty{u16})
	f.impl("Conv", 0, foo, []ir.Ty{u8})
	f.impl("Conv", 0, foo, []ir.Ty{u32})
	id := f.impl("Iterator", 1, ir.App("Vec", ir.Bound(0)), nil)
	f.reg.RegisterAssocValue(registry.AssociatedTypeValue{Impl: id, Name: "Item", Value: ir.Bound(0)})
	e := f.env(env.Bound{Self: tT, Trait: "Clone"})

	goals := []ir.Goal{
		holds("Clone", ir.App("Vec", tT)),
		holds("Clone", ir.App("Vec", ir.Infer(0))),
		holds("Conv", u8, ir.Infer(0)),
		holds("Conv", foo, ir.Infer(0)),
		holds("Show", foo),
		projects("Iterator", "Item", ir.App("Vec", ir.App("Vec", u8)), nil, ir.Infer(0)),
		ir.WellFormedGoal{Ty: ir.App("Vec", tT)},
	}
	return f, e, goals
}

func TestDeterminism(t *testing.T) {
	f, e, goals := richFixture(t)
	eng := f.engine()

	for _, g := range goals {
		t.Run(g.String(), func(t *testing.T) {
			obl := ir.NewInEnvironment(e, g)
			first := eng.Solve(obl)
			second := eng.Solve(obl)
			assert.Equal(t, ir.MustSolutionHash(first), ir.MustSolutionHash(second))
		})
	}
}

// matchesDirectly reports whether g unifies with the head of some clause
// of e or of the registry without binding any of g's variables.
func matchesDirectly(view *registry.View, e *ir.Environment, g ir.Goal) bool {
	canon, vars := ir.Canonicalize(g)
	try := func(c ir.Clause) bool {
		tb := newTable(vars)
		head, _ := tb.instantiate(c)
		if _, ok := tb.unifyGoal(canon, head); !ok {
			return false
		}
		return tb.extract(len(vars)).IsIdentity()
	}
	for _, c := range e.Clauses() {
		if try(c) {
			return true
		}
	}
	switch goal := canon.(type) {
	case ir.TraitGoal:
		for _, id := range view.ImplementationsFor(goal.Ref.Trait) {
			if c, ok := view.ImplClause(id, goal.Ref.Self); ok && try(c) {
				return true
			}
		}
	case ir.ProjectionGoal:
		for _, id := range view.ProjectionCandidates(goal.Projection.Trait, goal.Projection.Assoc) {
			if c, ok := view.AssocClause(id, goal.Projection.Self); ok && try(c) {
				return true
			}
		}
	case ir.WellFormedGoal:
		return true
	}
	return false
}

func TestSoundness(t *testing.T) {
	f, e, goals := richFixture(t)
	eng := f.engine()
	view := f.reg.Snapshot()

	for _, g := range goals {
		t.Run(g.String(), func(t *testing.T) {
			sol := eng.Solve(ir.NewInEnvironment(e, g))
			u, ok := sol.(ir.Unique)
			if !ok {
				return
			}
			applied := u.Subst.ApplyToGoal(g)
			assert.True(t, matchesDirectly(view, e, applied), "%s does not match a clause", applied)
		})
	}
}

func TestMonotonicImplAddition(t *testing.T) {
	f := newFixture(t)
	g := holds("Show", ir.App("Vec", foo))
	kinds := func() string { return ir.SolutionKind(f.solve(nil, g)) }

	assert.Equal(t, ir.KindNone, kinds())

	f.impl("Show", 1, ir.App("Vec", ir.Bound(0)), nil, holds("Show", ir.Bound(0)))
	assert.Equal(t, ir.KindNone, kinds(), "Foo: Show does not hold yet")

	f.impl("Show", 0, foo, nil)
	assert.Equal(t, ir.KindUnique, kinds())

	f.impl("Show", 1, ir.Bound(0), nil)
	assert.Equal(t, ir.KindAmbiguous, kinds())

	f.impl("Show", 0, ir.App("Vec", foo), nil)
	assert.Equal(t, ir.KindAmbiguous, kinds())
}

// TestExtraBoundsPreserveEnvironmentAnswers adds duplicate bounds and
// bounds on an unrelated parameter to an environment. Their implication
// clauses match the goals but never settle, yet every answer the original
// environment proved stays the same.
func TestExtraBoundsPreserveEnvironmentAnswers(t *testing.T) {
	layerImpls := map[string]func(f *fixture){
		"ambiguous subtrait": func(f *fixture) {
			f.impl("Layer", 1, ir.Bound(0), nil)
			f.impl("Layer", 1, ir.Bound(0), nil)
		},
		"divergent subtrait": func(f *fixture) {
			f.impl("Layer", 1, ir.Bound(0), nil, holds("Layer", ir.App("Vec", ir.Bound(0))))
		},
	}

	base := []env.Bound{
		{Self: tT, Trait: "Clone"},
		{Self: tT, Trait: "Conv", Args: []ir.Ty{u8}},
		{Self: tT, Trait: "Iterator", AssocEqs: []env.AssocEq{{Name: "Item", Ty: u32}}},
	}
	extras := map[string][]env.Bound{
		"duplicates":      base,
		"unrelated layer": {{Self: ir.Param("U"), Trait: "Layer"}},
		"layer on T":      {{Self: tT, Trait: "Layer"}},
	}
	goals := []ir.Goal{
		holds("Clone", tT),
		holds("Conv", tT, ir.Infer(0)),
		holds("Conv", tT, u8),
		projects("Iterator", "Item", tT, nil, ir.Infer(0)),
	}

	for implName, register := range layerImpls {
		for extraName, extra := range extras {
			t.Run(implName+"/"+extraName, func(t *testing.T) {
				f := newFixture(t)
				f.reg.RegisterTrait(registry.TraitDecl{
					Name: "Layer",
					Supertraits: []ir.TraitRef{
						{Trait: "Clone", Self: ir.Bound(0)},
						{Trait: "Conv", Self: ir.Bound(0), Args: []ir.Ty{u8}},
					},
				})
				register(f)
				plain := f.env(base...)
				extended := f.env(append(slices.Clone(base), extra...)...)

				for _, g := range goals {
					want := f.solve(plain, g)
					require.Equal(t, ir.KindUnique, ir.SolutionKind(want), "%s", g)
					assertSolution(t, want, f.solve(extended, g))
				}
			})
		}
	}
}

func TestFuelBoundedness(t *testing.T) {
	t.Run("terminating search stabilises", func(t *testing.T) {
		f, e, goals := richFixture(t)
		for _, g := range goals {
			var kinds []string
			for _, fuel := range []int{50, 500, 5000} {
				kinds = append(kinds, ir.SolutionKind(f.solve(e, g, WithFuel(fuel))))
			}
			assert.Equal(t, kinds[1], kinds[0], "%s", g)
			assert.Equal(t, kinds[2], kinds[1], "%s", g)
		}
	})

	t.Run("divergent search is ambiguous, never negative", func(t *testing.T) {
		f := newFixture(t)
		// impl<X> Show for X where Vec<X>: Show
		f.impl("Show", 1, ir.Bound(0), nil, holds("Show", ir.App("Vec", ir.Bound(0))))

		for _, fuel := range []int{1, 10, 100, 1000} {
			sol, stats := f.engine(WithFuel(fuel)).SolveWithStats(ir.NewInEnvironment[ir.Goal](nil, holds("Show", i32)))
			assertSolution(t, ambiguous(ir.Unknown{}), sol)
			assert.True(t, stats.Truncated)
			assert.LessOrEqual(t, stats.FuelUsed, fuel)
		}
	})

	t.Run("zero fuel", func(t *testing.T) {
		f := newFixture(t)
		assertSolution(t, ambiguous(ir.Unknown{}), f.solve(nil, holds(registry.TraitDefault, i32), WithFuel(0)))
	})
}

func TestTruncatedSingleCandidateIsSuggested(t *testing.T) {
	f := newFixture(t)
	f.impl("Conv", 0, foo, []ir.Ty{u8})
	f.impl("Conv", 0, foo, []ir.Ty{u16})

	sol := f.solve(nil, holds("Conv", foo, ir.Infer(0)), WithFuel(1))
	assertSolution(t, ambiguous(ir.Suggested{Subst: ir.Substitution{Values: []ir.Ty{u8}}}), sol)
}

func TestCycleTermination(t *testing.T) {
	f := newFixture(t)
	f.reg.RegisterType(registry.TypeDecl{
		Name:   "List",
		Params: []string{"T"},
		Fields: []ir.Ty{ir.Bound(0), ir.App("Option", ir.App("Box", ir.App("List", ir.Bound(0))))},
	})
	f.reg.RegisterType(registry.TypeDecl{
		Name:   "Tree",
		Params: []string{"T"},
		Fields: []ir.Ty{ir.App("List", ir.App("Tree", ir.Bound(0))), ir.Bound(0)},
	})

	ty := ir.Ty(i32)
	for depth := 0; depth < 6; depth++ {
		ty = ir.App("Tree", ir.App("List", ty))
		t.Run(fmt.Sprintf("depth %d", depth), func(t *testing.T) {
			sol, stats := f.engine().SolveWithStats(ir.NewInEnvironment[ir.Goal](nil, holds("Send", ty)))
			assertSolution(t, unique(), sol)
			assert.False(t, stats.Truncated)
			assert.Positive(t, stats.CycleHits)
		})
	}
}

func TestCoinductionFailsOnContradiction(t *testing.T) {
	f := newFixture(t)
	f.reg.RegisterType(registry.TypeDecl{
		Name:   "Node",
		Params: []string{},
		Fields: []ir.Ty{ir.App("Box", ir.App("Node")), tT},
	})

	// The cycle through Box<Node> is fine; the rigid parameter is not Send
	// without an environment fact.
	assertSolution(t, ir.NoSolution{}, f.solve(nil, holds("Send", ir.App("Node"))))

	e := f.env(env.Bound{Self: tT, Trait: "Send"})
	assertSolution(t, unique(), f.solve(e, holds("Send", ir.App("Node"))))
}

func TestInductiveCycleContributesNothing(t *testing.T) {
	f := newFixture(t)
	// impl<X: Clone> Clone for X
	f.impl("Clone", 1, ir.Bound(0), nil, holds("Clone", ir.Bound(0)))

	sol, stats := f.engine().SolveWithStats(ir.NewInEnvironment[ir.Goal](nil, holds("Clone", i32)))
	assertSolution(t, ir.NoSolution{}, sol)
	assert.Positive(t, stats.CycleHits)

	f.impl("Clone", 0, i32, nil)
	sol = f.solve(nil, holds("Clone", i32))
	require.Equal(t, ir.KindAmbiguous, ir.SolutionKind(sol), "the cycle now succeeds alongside the direct impl")
}
