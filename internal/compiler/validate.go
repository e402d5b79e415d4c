package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/tsolve/internal/env"
	"github.com/roach88/tsolve/internal/goal"
	"github.com/roach88/tsolve/internal/ir"
	"github.com/roach88/tsolve/internal/registry"
)

// Validation error codes (E100-E199)
const (
	ErrLangTraitRedeclared = "E101" // program declares a builtin trait
	ErrUnknownTrait        = "E102" // trait name not declared
	ErrTraitArity          = "E103" // wrong number of trait arguments
	ErrTypeArity           = "E104" // declared type applied to wrong number of arguments
	ErrUnknownAssoc        = "E105" // associated type not declared by the trait
	ErrDuplicateClosure    = "E106" // closure id declared twice
	ErrUnknownClosure      = "E107" // closure#N never declared
	ErrUnknownContext      = "E108" // goal names an undeclared context
	ErrMissingAssoc        = "E109" // impl leaves an associated type unbound
	ErrUnconstrainedParam  = "E110" // impl parameter absent from the impl head
	ErrAutoTraitShape      = "E111" // auto trait with params, assoc types or supertraits
	ErrDuplicateParam      = "E112" // parameter name repeated
)

// ValidationError represents a program validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// validator resolves names against the builtins and the program.
type validator struct {
	traits   map[string]registry.TraitDecl
	types    map[string]registry.TypeDecl
	closures map[ir.ClosureID]bool
	errs     []ValidationError
}

func (v *validator) add(code, field, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
}

// Validate checks a compiled program. Returns all errors found (does not
// fail-fast). A program that validates registers without faults.
func Validate(p *Program) []ValidationError {
	v := &validator{
		traits:   make(map[string]registry.TraitDecl),
		types:    make(map[string]registry.TypeDecl),
		closures: make(map[ir.ClosureID]bool),
	}

	builtins := registry.New()
	builtins.RegisterBuiltins()
	view := builtins.Snapshot()
	for _, name := range registry.LangTraits {
		d, _ := view.Trait(name)
		v.traits[name] = d
	}

	for i, t := range p.Traits {
		field := fmt.Sprintf("trait.%s", t.Name)
		if slices.Contains(registry.LangTraits, t.Name) {
			v.add(ErrLangTraitRedeclared, field, "trait %s is built in", t.Name)
			continue
		}
		if t.Auto && (t.Params > 0 || len(t.AssocTypes) > 0 || len(t.Supertraits) > 0) {
			v.add(ErrAutoTraitShape, field, "auto trait %s must have no parameters, associated types or supertraits", t.Name)
		}
		v.traits[t.Name] = p.Traits[i]
	}
	for _, t := range p.Types {
		v.types[t.Name] = t
		v.checkParams("type."+t.Name+".params", t.Params)
	}
	for _, c := range p.Closures {
		if v.closures[c.ID] {
			v.add(ErrDuplicateClosure, fmt.Sprintf("closure#%d", c.ID), "closure id %d declared twice", c.ID)
		}
		v.closures[c.ID] = true
	}

	for _, t := range p.Traits {
		for i, s := range t.Supertraits {
			v.traitRef(fmt.Sprintf("trait.%s.supertraits[%d]", t.Name, i), s)
		}
	}
	for _, t := range p.Types {
		for i, f := range t.Fields {
			v.ty(fmt.Sprintf("type.%s.fields[%d]", t.Name, i), f)
		}
		for i, w := range t.Where {
			v.traitRef(fmt.Sprintf("type.%s.where[%d]", t.Name, i), w)
		}
	}
	for _, c := range p.Closures {
		field := fmt.Sprintf("closure#%d", c.ID)
		for _, t := range c.Params {
			v.ty(field+".params", t)
		}
		v.ty(field+".ret", c.Ret)
	}
	for _, im := range p.Impls {
		v.impl(im)
	}
	for _, c := range p.Contexts {
		v.checkParams("context."+c.Name+".params", c.Params)
		for i, b := range c.Bounds {
			v.bound(fmt.Sprintf("context.%s.bounds[%d]", c.Name, i), b)
		}
	}
	for _, g := range p.Goals {
		v.goal(p, g)
	}
	return v.errs
}

func (v *validator) checkParams(field string, params []string) {
	seen := make(map[string]bool)
	for _, n := range params {
		if seen[n] {
			v.add(ErrDuplicateParam, field, "parameter %s repeated", n)
		}
		seen[n] = true
	}
}

func (v *validator) impl(im ImplDecl) {
	field := "impl." + im.Name
	v.checkParams(field+".params", im.Params)
	ref := im.Impl.Trait
	decl, ok := v.traitRef(field+".head", ref)

	used := make(map[int]bool)
	for _, t := range append([]ir.Ty{ref.Self}, ref.Args...) {
		ir.WalkTy(t, func(n ir.Ty) bool {
			if b, ok := n.(ir.TyBound); ok {
				used[b.Index] = true
			}
			return true
		})
	}
	for i, name := range im.Params {
		if !used[i] {
			v.add(ErrUnconstrainedParam, field+".params", "parameter %s does not appear in the impl head", name)
		}
	}

	for i, g := range im.Impl.Where {
		v.goalTerm(fmt.Sprintf("%s.where[%d]", field, i), g)
	}

	if !ok {
		return
	}
	bound := make(map[string]bool)
	for _, a := range im.Assoc {
		if !decl.HasAssoc(a.Name) {
			v.add(ErrUnknownAssoc, field+".assoc."+a.Name, "trait %s has no associated type %s", decl.Name, a.Name)
		}
		bound[a.Name] = true
		v.ty(field+".assoc."+a.Name, a.Value)
	}
	for _, name := range decl.AssocTypes {
		if !bound[name] {
			v.add(ErrMissingAssoc, field+".assoc", "impl of %s must bind %s", decl.Name, name)
		}
	}
}

func (v *validator) bound(field string, b env.Bound) {
	decl, ok := v.traitRef(field, b.Ref())
	for _, eq := range b.AssocEqs {
		if ok && !decl.HasAssoc(eq.Name) {
			v.add(ErrUnknownAssoc, field, "trait %s has no associated type %s", decl.Name, eq.Name)
		}
		v.ty(field, eq.Ty)
	}
}

func (v *validator) goal(p *Program, g GoalDecl) {
	field := "goal." + g.Name
	if g.Context != "" {
		if _, ok := p.Context(g.Context); !ok {
			v.add(ErrUnknownContext, field+".context", "unknown context %q", g.Context)
		}
	}
	site := g.Site
	switch site.Kind {
	case goal.SiteWellFormed:
		v.ty(field, site.Self)
	default:
		decl, ok := v.traitRef(field, ir.TraitRef{Trait: site.Trait, Self: site.Self, Args: site.Args})
		if site.Kind == goal.SiteProjection {
			if ok && !decl.HasAssoc(site.Assoc) {
				v.add(ErrUnknownAssoc, field, "trait %s has no associated type %s", decl.Name, site.Assoc)
			}
			v.ty(field, site.Expected)
		}
	}
}

func (v *validator) goalTerm(field string, g ir.Goal) {
	switch gl := g.(type) {
	case ir.TraitGoal:
		v.traitRef(field, gl.Ref)
	case ir.ProjectionGoal:
		v.ty(field, gl.Projection)
		v.ty(field, gl.Expected)
	case ir.WellFormedGoal:
		v.ty(field, gl.Ty)
	}
}

// traitRef checks the trait exists, its arity, and every type in ref.
func (v *validator) traitRef(field string, ref ir.TraitRef) (registry.TraitDecl, bool) {
	v.ty(field, ref.Self)
	for _, a := range ref.Args {
		v.ty(field, a)
	}
	decl, ok := v.traits[ref.Trait]
	if !ok {
		v.add(ErrUnknownTrait, field, "unknown trait %s", ref.Trait)
		return decl, false
	}
	if len(ref.Args) != decl.Params {
		v.add(ErrTraitArity, field, "trait %s takes %d arguments, got %d", ref.Trait, decl.Params, len(ref.Args))
		return decl, false
	}
	return decl, true
}

// ty checks every nominal, projection and closure in t. Nil (a hole) is
// accepted.
func (v *validator) ty(field string, t ir.Ty) {
	ir.WalkTy(t, func(n ir.Ty) bool {
		switch x := n.(type) {
		case ir.TyApp:
			if d, ok := v.types[x.Name]; ok && len(d.Params) != len(x.Args) {
				v.add(ErrTypeArity, field, "type %s takes %d arguments, got %d", x.Name, len(d.Params), len(x.Args))
			}
		case ir.TyProjection:
			if d, ok := v.traitRef(field, x.TraitRef()); ok && !d.HasAssoc(x.Assoc) {
				v.add(ErrUnknownAssoc, field, "trait %s has no associated type %s", d.Name, x.Assoc)
			}
			// traitRef visited the children.
			return false
		case ir.TyClosure:
			if !v.closures[x.ID] {
				v.add(ErrUnknownClosure, field, "closure#%d is not declared", x.ID)
			}
		}
		return true
	})
}
