package solver

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tsolve/internal/env"
	"github.com/roach88/tsolve/internal/goal"
	"github.com/roach88/tsolve/internal/ir"
	"github.com/roach88/tsolve/internal/registry"
)

func assertSolution(t *testing.T, want, got ir.Solution) {
	t.Helper()
	assert.True(t, ir.EqualSolution(want, got), "want %s, got %s", want, got)
}

func TestNumericDefaultBuiltin(t *testing.T) {
	f := newFixture(t)
	sol := f.solve(nil, holds(registry.TraitDefault, i32))
	assertSolution(t, unique(), sol)
}

func TestEnvironmentBoundMatchesDirectly(t *testing.T) {
	f := newFixture(t)
	e := f.env(env.Bound{Self: tT, Trait: registry.TraitDefault})

	sol := f.solve(e, holds(registry.TraitDefault, tT))
	assertSolution(t, unique(), sol)
}

func TestClosureCallOutput(t *testing.T) {
	f := newFixture(t)
	f.reg.RegisterClosure(registry.ClosureDecl{ID: 1, Params: []ir.Ty{i32}, Ret: i32, Kind: registry.FnTraitFn})

	obl, vars := goal.MustEncode(goal.CheckSite{
		Kind:  goal.SiteProjection,
		Self:  ir.TyClosure{ID: 1},
		Trait: "Fn",
		Args:  []ir.Ty{ir.Tuple(i32)},
		Assoc: registry.OutputAssoc,
	}, nil)
	require.Equal(t, 1, vars.Len())

	sol := f.engine().Solve(obl)
	assertSolution(t, unique(i32), sol)
}

func TestClosureImplementsWeakerCallTraits(t *testing.T) {
	f := newFixture(t)
	f.reg.RegisterClosure(registry.ClosureDecl{ID: 2, Params: []ir.Ty{u8}, Ret: ir.Tuple(), Kind: registry.FnTraitFnMut})

	assertSolution(t, unique(), f.solve(nil, holds("FnOnce", ir.TyClosure{ID: 2}, ir.Tuple(u8))))
	assertSolution(t, ir.NoSolution{}, f.solve(nil, holds("Fn", ir.TyClosure{ID: 2}, ir.Tuple(u8))))
	assertSolution(t, ir.NoSolution{}, f.solve(nil, holds("FnMut", ir.TyClosure{ID: 2}, ir.Tuple(u16))))
}

func TestFnPointerCall(t *testing.T) {
	f := newFixture(t)
	fn := ir.Fn([]ir.Ty{u8, u16}, u32)

	sol := f.solve(nil, projects("FnOnce", registry.OutputAssoc, fn, []ir.Ty{ir.Infer(0)}, ir.Infer(1)))
	assertSolution(t, unique(ir.Tuple(u8, u16), u32), sol)
}

func TestAmbiguousImpls(t *testing.T) {
	t.Run("unknown without a default", func(t *testing.T) {
		f := newFixture(t)
		f.impl("Show", 0, foo, nil)
		f.impl("Show", 0, foo, nil)

		assertSolution(t, ambiguous(ir.Unknown{}), f.solve(nil, holds("Show", foo)))
	})

	t.Run("suggested with one default", func(t *testing.T) {
		f := newFixture(t)
		f.impl("Show", 0, foo, nil)
		f.defaultImpl("Show", foo, nil)

		sol := f.solve(nil, holds("Show", foo))
		assertSolution(t, ambiguous(ir.Suggested{Subst: ir.Substitution{Values: []ir.Ty{}}}), sol)
	})
}

func TestNoImplementationIsNoSolution(t *testing.T) {
	f := newFixture(t)
	f.impl("Ord", 0, i32, nil)

	assertSolution(t, ir.NoSolution{}, f.solve(nil, holds("Ord", ir.App("CustomType"))))
}

func TestGuidance(t *testing.T) {
	t.Run("definite when candidates agree", func(t *testing.T) {
		f := newFixture(t)
		f.impl("Conv", 0, foo, []ir.Ty{u8})
		f.impl("Conv", 0, foo, []ir.Ty{u8})

		sol := f.solve(nil, holds("Conv", foo, ir.Infer(0)))
		assertSolution(t, ambiguous(ir.Definite{Subst: ir.Substitution{Values: []ir.Ty{u8}}}), sol)
	})

	t.Run("suggested default among disagreeing candidates", func(t *testing.T) {
		f := newFixture(t)
		f.impl("Conv", 0, foo, []ir.Ty{u8})
		f.defaultImpl("Conv", foo, []ir.Ty{u16})

		sol := f.solve(nil, holds("Conv", foo, ir.Infer(0)))
		assertSolution(t, ambiguous(ir.Suggested{Subst: ir.Substitution{Values: []ir.Ty{u16}}}), sol)
	})

	t.Run("unknown when they disagree", func(t *testing.T) {
		f := newFixture(t)
		f.impl("Conv", 0, foo, []ir.Ty{u8})
		f.impl("Conv", 0, foo, []ir.Ty{u16})

		assertSolution(t, ambiguous(ir.Unknown{}), f.solve(nil, holds("Conv", foo, ir.Infer(0))))
	})
}

func TestEnvironmentBeforeRegistry(t *testing.T) {
	f := newFixture(t)
	// Blanket impl that would also match T.
	f.impl("Show", 1, ir.Bound(0), nil)
	e := f.env(env.Bound{Self: tT, Trait: "Show"})

	assertSolution(t, unique(), f.solve(e, holds("Show", tT)))
}

func TestRedundantEnvironmentClausesMerge(t *testing.T) {
	f := newFixture(t)
	bound := env.Bound{Self: tT, Trait: "Show"}
	e := f.env(bound, bound)

	assertSolution(t, unique(), f.solve(e, holds("Show", tT)))
}

func TestUnsettledImplicationDoesNotShadowFact(t *testing.T) {
	f := newFixture(t)
	f.reg.RegisterTrait(registry.TraitDecl{Name: "Super"})
	f.reg.RegisterTrait(registry.TraitDecl{
		Name:        "Sub",
		Supertraits: []ir.TraitRef{{Trait: "Super", Self: ir.Bound(0)}},
	})
	// impl<X: Show> Sub for X, with Show itself ambiguous for every type.
	f.impl("Sub", 1, ir.Bound(0), nil, holds("Show", ir.Bound(0)))
	f.impl("Show", 1, ir.Bound(0), nil)
	f.impl("Show", 1, ir.Bound(0), nil)

	tU := ir.Param("U")
	g := holds("Super", tT)
	alone := f.env(env.Bound{Self: tT, Trait: "Super"})
	withSub := f.env(env.Bound{Self: tT, Trait: "Super"}, env.Bound{Self: tU, Trait: "Sub"})

	assertSolution(t, unique(), f.solve(alone, g))
	assertSolution(t, unique(), f.solve(withSub, g))
	assertSolution(t, ambiguous(ir.Unknown{}), f.solve(withSub, holds("Sub", tT)))
}

func TestTruncatedImplicationDoesNotShadowFact(t *testing.T) {
	f := newFixture(t)
	f.reg.RegisterTrait(registry.TraitDecl{Name: "Super"})
	f.reg.RegisterTrait(registry.TraitDecl{
		Name:        "Sub",
		Supertraits: []ir.TraitRef{{Trait: "Super", Self: ir.Bound(0)}},
	})
	// impl<X> Sub for X where Vec<X>: Sub never settles.
	f.impl("Sub", 1, ir.Bound(0), nil, holds("Sub", ir.App("Vec", ir.Bound(0))))
	e := f.env(env.Bound{Self: tT, Trait: "Super"}, env.Bound{Self: ir.Param("U"), Trait: "Sub"})

	for _, fuel := range []int{1, 3, 50, DefaultFuel} {
		sol, stats := f.engine(WithFuel(fuel)).SolveWithStats(ir.NewInEnvironment[ir.Goal](e, holds("Super", tT)))
		assertSolution(t, unique(), sol)
		assert.True(t, stats.Truncated, "fuel %d", fuel)
	}
}

func TestProvenFactSettlesMatchingUnsettledAnswer(t *testing.T) {
	f := newFixture(t)
	f.reg.RegisterTrait(registry.TraitDecl{
		Name:        "Layer",
		Supertraits: []ir.TraitRef{{Trait: "Conv", Self: ir.Bound(0), Args: []ir.Ty{u8}}},
	})
	f.impl("Layer", 1, ir.Bound(0), nil)
	f.impl("Layer", 1, ir.Bound(0), nil)
	e := f.env(
		env.Bound{Self: tT, Trait: "Conv", Args: []ir.Ty{u8}},
		env.Bound{Self: ir.Param("U"), Trait: "Layer"},
	)

	// The implication Conv<u8> :- Layer answers ?0 = u8 without settling.
	assertSolution(t, unique(u8), f.solve(e, holds("Conv", tT, ir.Infer(0))))
}

func TestWhereClausesAreSolved(t *testing.T) {
	f := newFixture(t)
	f.impl("Clone", 0, i32, nil)
	// impl<X: Clone> Clone for Vec<X>
	f.impl("Clone", 1, ir.App("Vec", ir.Bound(0)), nil, holds("Clone", ir.Bound(0)))

	assertSolution(t, unique(), f.solve(nil, holds("Clone", ir.App("Vec", ir.App("Vec", i32)))))
	assertSolution(t, ir.NoSolution{}, f.solve(nil, holds("Clone", ir.App("Vec", u8))))

	// The element type is unknown: the impl matches but its bound flounders.
	sol := f.solve(nil, holds("Clone", ir.App("Vec", ir.Infer(0))))
	assertSolution(t, ambiguous(ir.Unknown{}), sol)
}

func TestSubgoalBindsOuterVariable(t *testing.T) {
	f := newFixture(t)
	f.impl("Conv", 0, u8, []ir.Ty{u16})
	// impl<X, Y: ...> Conv<Vec<Y>> for Vec<X> where X: Conv<Y>
	f.impl("Conv", 2, ir.App("Vec", ir.Bound(0)), []ir.Ty{ir.App("Vec", ir.Bound(1))},
		holds("Conv", ir.Bound(0), ir.Bound(1)))

	sol := f.solve(nil, holds("Conv", ir.App("Vec", u8), ir.Infer(0)))
	assertSolution(t, unique(ir.App("Vec", u16)), sol)
}

func TestFloundering(t *testing.T) {
	f := newFixture(t)
	f.impl("Show", 0, foo, nil)

	assertSolution(t, ambiguous(ir.Unknown{}), f.solve(nil, holds("Show", ir.Infer(0))))
	// Ord has no impls at all.
	assertSolution(t, ir.NoSolution{}, f.solve(nil, holds("Ord", ir.Infer(0))))

	// An environment fact can still answer.
	e := f.env(env.Bound{Self: tT, Trait: "Ord"})
	assertSolution(t, unique(tT), f.solve(e, holds("Ord", ir.Infer(0))))
}

func TestIntegerVariableKind(t *testing.T) {
	f := newFixture(t)
	f.impl("Conv", 0, foo, []ir.Ty{ir.App("String")})
	f.impl("Conv", 0, foo, []ir.Ty{u8})

	intVar := ir.TyInfer{Index: 0, Kind: ir.VarInteger}
	assertSolution(t, unique(u8), f.solve(nil, holds("Conv", foo, intVar)))
}

func TestProjectionFromEnvironment(t *testing.T) {
	f := newFixture(t)
	e := f.env(env.Bound{Self: tT, Trait: "Iterator", AssocEqs: []env.AssocEq{{Name: "Item", Ty: u32}}})

	sol := f.solve(e, projects("Iterator", "Item", tT, nil, ir.Infer(0)))
	assertSolution(t, unique(u32), sol)
}

func TestProjectionFromImpl(t *testing.T) {
	f := newFixture(t)
	// impl<X> Iterator for Vec<X> { type Item = X; }
	id := f.impl("Iterator", 1, ir.App("Vec", ir.Bound(0)), nil)
	f.reg.RegisterAssocValue(registry.AssociatedTypeValue{Impl: id, Name: "Item", Value: ir.Bound(0)})

	sol := f.solve(nil, projects("Iterator", "Item", ir.App("Vec", u8), nil, ir.Infer(0)))
	assertSolution(t, unique(u8), sol)

	sol = f.solve(nil, projects("Iterator", "Item", ir.App("Vec", u8), nil, u16))
	assertSolution(t, ir.NoSolution{}, sol)
}

func TestPlaceholderProjection(t *testing.T) {
	f := newFixture(t)
	e := f.env(env.Bound{Self: tT, Trait: "Iterator"})
	item := ir.TyProjection{Trait: "Iterator", Assoc: "Item", Self: tT}

	sol := f.solve(e, projects("Iterator", "Item", tT, nil, ir.Infer(0)))
	assertSolution(t, unique(item), sol)

	// Without T: Iterator nothing can be said about the projection.
	sol = f.solve(nil, projects("Iterator", "Item", tT, nil, ir.Infer(0)))
	assertSolution(t, ir.NoSolution{}, sol)
}

func TestProjectionInSelfIsNormalised(t *testing.T) {
	f := newFixture(t)
	f.impl("Sum", 0, u32, nil)
	e := f.env(env.Bound{Self: tT, Trait: "Iterator", AssocEqs: []env.AssocEq{{Name: "Item", Ty: u32}}})
	item := ir.TyProjection{Trait: "Iterator", Assoc: "Item", Self: tT}

	assertSolution(t, unique(), f.solve(e, holds("Sum", item)))
}

func TestSupertraitElaboration(t *testing.T) {
	reg := registry.New()
	reg.RegisterTrait(registry.TraitDecl{Name: "PartialOrd"})
	reg.RegisterTrait(registry.TraitDecl{Name: "Ord", Supertraits: []ir.TraitRef{{Trait: "PartialOrd", Self: ir.Bound(0)}}})
	view := reg.Snapshot()
	e, err := env.Build(env.Context{Name: "f", Bounds: []env.Bound{{Self: tT, Trait: "Ord"}}}, view)
	require.NoError(t, err)

	sol := New(view, WithLogger(discardLogger())).Solve(ir.NewInEnvironment[ir.Goal](e, holds("PartialOrd", tT)))
	assertSolution(t, unique(), sol)
}

func TestWellFormed(t *testing.T) {
	f := newFixture(t)
	f.reg.RegisterType(registry.TypeDecl{
		Name:   "Set",
		Params: []string{"T"},
		Where:  []ir.TraitRef{{Trait: "Ord", Self: ir.Bound(0)}},
	})
	f.impl("Ord", 0, i32, nil)

	assertSolution(t, unique(), f.solve(nil, ir.WellFormedGoal{Ty: ir.App("Set", i32)}))
	assertSolution(t, unique(), f.solve(nil, ir.WellFormedGoal{Ty: ir.App("Vec", ir.App("Set", i32))}))
	assertSolution(t, ir.NoSolution{}, f.solve(nil, ir.WellFormedGoal{Ty: ir.App("Set", foo)}))
	assertSolution(t, ir.NoSolution{}, f.solve(nil, ir.WellFormedGoal{Ty: ir.App("Set")}))
	assertSolution(t, ambiguous(ir.Unknown{}), f.solve(nil, ir.WellFormedGoal{Ty: ir.App("Set", ir.Infer(0))}))

	e := f.env(env.Bound{Self: tT, Trait: "Ord"})
	assertSolution(t, unique(), f.solve(e, ir.WellFormedGoal{Ty: ir.App("Set", tT)}))
}

func TestSolveIsConcurrencySafe(t *testing.T) {
	f := newFixture(t)
	f.impl("Clone", 0, i32, nil)
	f.impl("Clone", 1, ir.App("Vec", ir.Bound(0)), nil, holds("Clone", ir.Bound(0)))
	eng := f.engine()
	obl := ir.NewInEnvironment[ir.Goal](nil, holds("Clone", ir.App("Vec", ir.App("Vec", i32))))

	var wg sync.WaitGroup
	results := make([]ir.Solution, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = eng.Solve(obl)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assertSolution(t, unique(), r)
	}
}

func TestSolveWithStats(t *testing.T) {
	f := newFixture(t)
	f.impl("Clone", 0, i32, nil)

	sol, stats := f.engine().SolveWithStats(ir.NewInEnvironment[ir.Goal](nil, holds("Clone", i32)))
	assertSolution(t, unique(), sol)
	assert.Equal(t, 1, stats.FuelUsed)
	assert.Equal(t, 1, stats.Candidates)
	assert.Equal(t, 1, stats.MaxDepth)
	assert.False(t, stats.Truncated)

	f.impl("Clone", 1, ir.App("Vec", ir.Bound(0)), nil, holds("Clone", ir.Bound(0)))
	sol, stats = f.engine().SolveWithStats(ir.NewInEnvironment[ir.Goal](nil, holds("Clone", ir.App("Vec", ir.App("Vec", i32)))))
	assertSolution(t, unique(), sol)
	assert.Equal(t, 3, stats.MaxDepth)
}
