package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/tsolve/internal/env"
	"github.com/roach88/tsolve/internal/goal"
	"github.com/roach88/tsolve/internal/ir"
	"github.com/roach88/tsolve/internal/registry"
)

// Program is a compiled declaration file set: everything the registry and
// environment builder need, plus the goals to solve.
type Program struct {
	Name     string
	Traits   []registry.TraitDecl
	Types    []registry.TypeDecl
	Impls    []ImplDecl
	Closures []registry.ClosureDecl
	Contexts []env.Context
	Goals    []GoalDecl
}

// ImplDecl is a user implementation with its associated type values.
type ImplDecl struct {
	Name   string
	Params []string
	Impl   registry.UserDeclared
	Assoc  []AssocDecl
}

// AssocDecl binds an associated type inside an impl. Value is written over
// the impl's binders.
type AssocDecl struct {
	Name  string
	Value ir.Ty
}

// CallerVar is an inference variable a goal mentions as ?Name. The i-th
// variable has caller index i.
type CallerVar struct {
	Name string
	Kind ir.VarKind
}

// GoalDecl is a named query.
type GoalDecl struct {
	Name    string
	Query   string
	Context string // "" solves in an empty environment
	Site    goal.CheckSite
	Vars    []CallerVar
}

// Context returns the named checking context.
func (p *Program) Context(name string) (env.Context, bool) {
	for _, c := range p.Contexts {
		if c.Name == name {
			return c, true
		}
	}
	return env.Context{}, false
}

// Goal returns the named goal.
func (p *Program) Goal(name string) (GoalDecl, bool) {
	for _, g := range p.Goals {
		if g.Name == name {
			return g, true
		}
	}
	return GoalDecl{}, false
}

// Registry builds a registry holding the builtins and every declaration of
// p, in declaration order: traits, types, closures, impls.
//
// Registry faults are returned as errors; a validated program never
// produces one.
func (p *Program) Registry() (reg *registry.Registry, err error) {
	defer func() {
		if r := recover(); r != nil {
			var ce *registry.ConsistencyError
			if e, ok := r.(error); ok && errors.As(e, &ce) {
				reg, err = nil, fmt.Errorf("program %s: %w", p.Name, ce)
				return
			}
			panic(r)
		}
	}()

	reg = registry.New()
	reg.RegisterBuiltins()
	for _, t := range p.Traits {
		reg.RegisterTrait(t)
	}
	for _, t := range p.Types {
		reg.RegisterType(t)
	}
	for _, c := range p.Closures {
		reg.RegisterClosure(c)
	}
	for _, im := range p.Impls {
		id := reg.Register(im.Impl)
		for _, a := range im.Assoc {
			reg.RegisterAssocValue(registry.AssociatedTypeValue{Impl: id, Name: a.Name, Value: a.Value})
		}
	}
	return reg, nil
}

// Environment builds the environment for a goal's context.
func (p *Program) Environment(view *registry.View, context string) (*ir.Environment, error) {
	if context == "" {
		return ir.EmptyEnvironment(), nil
	}
	ctx, ok := p.Context(context)
	if !ok {
		return nil, fmt.Errorf("unknown context %q", context)
	}
	return env.Build(ctx, view)
}
