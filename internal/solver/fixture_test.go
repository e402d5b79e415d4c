package solver

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tsolve/internal/env"
	"github.com/roach88/tsolve/internal/ir"
	"github.com/roach88/tsolve/internal/registry"
)

var (
	i32 = ir.App("i32")
	u8  = ir.App("u8")
	u16 = ir.App("u16")
	u32 = ir.App("u32")
	foo = ir.App("Foo")
	tT  = ir.Param("T")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture is a registry under construction plus helpers to solve against
// its current snapshot.
type fixture struct {
	t     *testing.T
	reg   *registry.Registry
	local int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := registry.New()
	reg.RegisterBuiltins()
	for _, name := range []string{"Show", "Ord", "Clone", "Sum"} {
		reg.RegisterTrait(registry.TraitDecl{Name: name})
	}
	reg.RegisterTrait(registry.TraitDecl{Name: "Conv", Params: 1})
	reg.RegisterTrait(registry.TraitDecl{Name: "Iterator", AssocTypes: []string{"Item"}})
	reg.RegisterTrait(registry.TraitDecl{Name: "Send", Auto: true})
	return &fixture{t: t, reg: reg}
}

// impl registers a user impl. self and args are written over binders.
func (f *fixture) impl(trait string, binders int, self ir.Ty, args []ir.Ty, where ...ir.Goal) registry.GlobalImplID {
	f.local++
	return f.reg.Register(registry.UserDeclared{
		Key:     registry.ImplKey{Module: "test", Local: f.local},
		Binders: binders,
		Trait:   ir.TraitRef{Trait: trait, Self: self, Args: args},
		Where:   where,
	})
}

func (f *fixture) defaultImpl(trait string, self ir.Ty, args []ir.Ty) registry.GlobalImplID {
	f.local++
	return f.reg.Register(registry.UserDeclared{
		Key:     registry.ImplKey{Module: "test", Local: f.local},
		Trait:   ir.TraitRef{Trait: trait, Self: self, Args: args},
		Default: true,
	})
}

func (f *fixture) engine(opts ...Option) *Engine {
	return New(f.reg.Snapshot(), append([]Option{WithLogger(discardLogger())}, opts...)...)
}

func (f *fixture) env(bounds ...env.Bound) *ir.Environment {
	f.t.Helper()
	e, err := env.Build(env.Context{Name: "test", Params: []string{"T"}, Bounds: bounds}, f.reg.Snapshot())
	require.NoError(f.t, err)
	return e
}

func (f *fixture) solve(e *ir.Environment, g ir.Goal, opts ...Option) ir.Solution {
	return f.engine(opts...).Solve(ir.NewInEnvironment(e, g))
}

func holds(trait string, self ir.Ty, args ...ir.Ty) ir.TraitGoal {
	return ir.TraitGoal{Ref: ir.TraitRef{Trait: trait, Self: self, Args: args}}
}

func projects(trait, assoc string, self ir.Ty, args []ir.Ty, expected ir.Ty) ir.ProjectionGoal {
	return ir.ProjectionGoal{
		Projection: ir.TyProjection{Trait: trait, Assoc: assoc, Self: self, Args: args},
		Expected:   expected,
	}
}

func unique(values ...ir.Ty) ir.Solution {
	if values == nil {
		values = []ir.Ty{}
	}
	return ir.Unique{Subst: ir.Substitution{Values: values}}
}

func ambiguous(g ir.Guidance) ir.Solution {
	return ir.Ambiguous{Guidance: g}
}
