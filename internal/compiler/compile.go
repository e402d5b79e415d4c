package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tsolve/internal/env"
	"github.com/roach88/tsolve/internal/goal"
	"github.com/roach88/tsolve/internal/ir"
	"github.com/roach88/tsolve/internal/registry"
)

// Compile lowers a CUE program value into a Program. Top-level sections
// are all optional:
//
//	trait:   Iterator: {assoc: ["Item"]}
//	type:    Vec: {params: ["T"], fields: ["T"]}
//	impl:    show_vec: {params: ["T"], head: "Vec<T>: Show", where: ["T: Show"]}
//	closure: add_one: {id: 1, params: ["i32"], ret: "i32", kind: "Fn"}
//	context: sum_all: {params: ["T"], bounds: ["T: Iterator<Item = u8>"]}
//	goal:    q1: {query: "<closure#1 as FnOnce<(i32,)>>::Output == ?R"}
//
// Compile checks shape and syntax only; see Validate for name resolution.
func Compile(name string, v cue.Value) (*Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	p := &Program{Name: name}

	steps := []struct {
		section string
		each    func(label string, v cue.Value) error
	}{
		{"trait", func(label string, v cue.Value) error {
			d, err := compileTrait(label, v)
			p.Traits = append(p.Traits, d)
			return err
		}},
		{"type", func(label string, v cue.Value) error {
			d, err := compileType(label, v)
			p.Types = append(p.Types, d)
			return err
		}},
		{"closure", func(label string, v cue.Value) error {
			d, err := compileClosure(label, v)
			p.Closures = append(p.Closures, d)
			return err
		}},
		{"impl", func(label string, v cue.Value) error {
			d, err := compileImpl(label, v, ImplKeyFor(name, len(p.Impls)))
			p.Impls = append(p.Impls, d)
			return err
		}},
		{"context", func(label string, v cue.Value) error {
			d, err := compileContext(label, v)
			p.Contexts = append(p.Contexts, d)
			return err
		}},
		{"goal", func(label string, v cue.Value) error {
			d, err := compileGoal(label, v, p)
			p.Goals = append(p.Goals, d)
			return err
		}},
	}

	for _, step := range steps {
		sec := v.LookupPath(cue.ParsePath(step.section))
		if !sec.Exists() {
			continue
		}
		iter, err := sec.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			if err := step.each(iter.Label(), iter.Value()); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// ImplKeyFor returns the key of the i-th impl of a program.
func ImplKeyFor(program string, i int) registry.ImplKey {
	return registry.ImplKey{Module: program, Local: i + 1}
}

func compileTrait(name string, v cue.Value) (registry.TraitDecl, error) {
	d := registry.TraitDecl{Name: name}
	params, err := stringList(v, "params")
	if err != nil {
		return d, err
	}
	d.Params = len(params)
	if d.AssocTypes, err = stringList(v, "assoc"); err != nil {
		return d, err
	}
	if d.Auto, err = optBool(v, "auto"); err != nil {
		return d, err
	}

	// Self is Bound(0), trait parameters follow.
	sc := paramScope(append([]string{"Self"}, params...), func(i int) ir.Ty { return ir.Bound(i) })
	supers, err := stringList(v, "supertraits")
	if err != nil {
		return d, err
	}
	for i, s := range supers {
		ref, err := parseTraitRef(s, ir.Bound(0), sc)
		if err != nil {
			return d, fieldError(v, fmt.Sprintf("trait.%s.supertraits[%d]", name, i), err)
		}
		d.Supertraits = append(d.Supertraits, ref)
	}
	return d, nil
}

func compileType(name string, v cue.Value) (registry.TypeDecl, error) {
	d := registry.TypeDecl{Name: name}
	var err error
	if d.Params, err = stringList(v, "params"); err != nil {
		return d, err
	}
	sc := paramScope(d.Params, func(i int) ir.Ty { return ir.Bound(i) })

	fields, err := stringList(v, "fields")
	if err != nil {
		return d, err
	}
	for i, f := range fields {
		t, err := parseTy(f, sc)
		if err != nil {
			return d, fieldError(v, fmt.Sprintf("type.%s.fields[%d]", name, i), err)
		}
		d.Fields = append(d.Fields, t)
	}

	where, err := stringList(v, "where")
	if err != nil {
		return d, err
	}
	for i, w := range where {
		bs, err := parseBounds(w, sc)
		if err == nil {
			for _, b := range bs {
				if len(b.AssocEqs) > 0 {
					err = fmt.Errorf("%q: associated type equalities are not allowed in type bounds", w)
					break
				}
				d.Where = append(d.Where, b.Ref())
			}
		}
		if err != nil {
			return d, fieldError(v, fmt.Sprintf("type.%s.where[%d]", name, i), err)
		}
	}
	return d, nil
}

func compileClosure(name string, v cue.Value) (registry.ClosureDecl, error) {
	var d registry.ClosureDecl
	idVal := v.LookupPath(cue.ParsePath("id"))
	if !idVal.Exists() {
		return d, &CompileError{Field: "closure." + name + ".id", Message: "closure id is required", Pos: v.Pos()}
	}
	id, err := idVal.Uint64()
	if err != nil || id == 0 || id > 1<<32-1 {
		return d, &CompileError{Field: "closure." + name + ".id", Message: "closure id must be a positive 32-bit integer", Pos: idVal.Pos()}
	}
	d.ID = ir.ClosureID(id)

	sc := &scope{}
	params, err := stringList(v, "params")
	if err != nil {
		return d, err
	}
	d.Params = []ir.Ty{}
	for i, s := range params {
		t, err := parseTy(s, sc)
		if err != nil {
			return d, fieldError(v, fmt.Sprintf("closure.%s.params[%d]", name, i), err)
		}
		d.Params = append(d.Params, t)
	}

	ret, err := optString(v, "ret", "()")
	if err != nil {
		return d, err
	}
	if d.Ret, err = parseTy(ret, sc); err != nil {
		return d, fieldError(v, "closure."+name+".ret", err)
	}

	kind, err := optString(v, "kind", registry.FnTraitFn.String())
	if err != nil {
		return d, err
	}
	var ok bool
	if d.Kind, ok = registry.ParseFnTrait(kind); !ok {
		return d, &CompileError{Field: "closure." + name + ".kind", Message: fmt.Sprintf("unknown closure kind %q", kind), Pos: v.Pos()}
	}
	return d, nil
}

func compileImpl(name string, v cue.Value, key registry.ImplKey) (ImplDecl, error) {
	d := ImplDecl{Name: name}
	params, err := stringList(v, "params")
	if err != nil {
		return d, err
	}
	d.Params = params
	sc := paramScope(params, func(i int) ir.Ty { return ir.Bound(i) })

	head, err := optString(v, "head", "")
	if err != nil {
		return d, err
	}
	if head == "" {
		return d, &CompileError{Field: "impl." + name + ".head", Message: "impl head is required", Pos: v.Pos()}
	}
	bs, err := parseBounds(head, sc)
	if err == nil && (len(bs) != 1 || len(bs[0].AssocEqs) > 0) {
		err = fmt.Errorf("%q: an impl head names exactly one trait", head)
	}
	if err != nil {
		return d, fieldError(v, "impl."+name+".head", err)
	}

	where, err := stringList(v, "where")
	if err != nil {
		return d, err
	}
	var conds []ir.Goal
	for i, w := range where {
		wb, err := parseBounds(w, sc)
		if err != nil {
			return d, fieldError(v, fmt.Sprintf("impl.%s.where[%d]", name, i), err)
		}
		conds = append(conds, boundGoals(wb)...)
	}

	def, err := optBool(v, "default")
	if err != nil {
		return d, err
	}
	d.Impl = registry.UserDeclared{
		Key:     key,
		Binders: len(params),
		Trait:   bs[0].Ref(),
		Where:   conds,
		Default: def,
	}

	assocVal := v.LookupPath(cue.ParsePath("assoc"))
	if assocVal.Exists() {
		iter, err := assocVal.Fields()
		if err != nil {
			return d, formatCUEError(err)
		}
		for iter.Next() {
			label := iter.Label()
			s, err := iter.Value().String()
			if err != nil {
				return d, formatCUEError(err)
			}
			t, err := parseTy(s, sc)
			if err != nil {
				return d, fieldError(iter.Value(), fmt.Sprintf("impl.%s.assoc.%s", name, label), err)
			}
			d.Assoc = append(d.Assoc, AssocDecl{Name: label, Value: t})
		}
	}
	return d, nil
}

// boundGoals turns where-clause bounds into goals: the trait goal, then a
// projection goal per associated type equality.
func boundGoals(bs []env.Bound) []ir.Goal {
	var out []ir.Goal
	for _, b := range bs {
		ref := b.Ref()
		out = append(out, ir.TraitGoal{Ref: ref})
		for _, eq := range b.AssocEqs {
			out = append(out, ir.ProjectionGoal{Projection: ref.Projection(eq.Name), Expected: eq.Ty})
		}
	}
	return out
}

func compileContext(name string, v cue.Value) (env.Context, error) {
	c := env.Context{Name: name}
	var err error
	if c.Params, err = stringList(v, "params"); err != nil {
		return c, err
	}
	sc := paramScope(c.Params, func(i int) ir.Ty { return ir.Param(c.Params[i]) })
	bounds, err := stringList(v, "bounds")
	if err != nil {
		return c, err
	}
	for i, s := range bounds {
		bs, err := parseBounds(s, sc)
		if err != nil {
			return c, fieldError(v, fmt.Sprintf("context.%s.bounds[%d]", name, i), err)
		}
		c.Bounds = append(c.Bounds, bs...)
	}
	return c, nil
}

func compileGoal(name string, v cue.Value, p *Program) (GoalDecl, error) {
	g := GoalDecl{Name: name}
	var err error
	if g.Query, err = optString(v, "query", ""); err != nil {
		return g, err
	}
	if g.Query == "" {
		return g, &CompileError{Field: "goal." + name + ".query", Message: "query is required", Pos: v.Pos()}
	}
	if g.Context, err = optString(v, "context", ""); err != nil {
		return g, err
	}

	sc := &scope{holes: true, vars: map[string]ir.TyInfer{}}
	if g.Context != "" {
		// Contexts compile before goals; an unknown name is reported by
		// Validate.
		if ctx, ok := p.Context(g.Context); ok {
			sc.params = paramScope(ctx.Params, func(i int) ir.Ty { return ir.Param(ctx.Params[i]) }).params
		}
	}

	varsVal := v.LookupPath(cue.ParsePath("vars"))
	if varsVal.Exists() {
		iter, err := varsVal.Fields()
		if err != nil {
			return g, formatCUEError(err)
		}
		for iter.Next() {
			label := iter.Label()
			s, err := iter.Value().String()
			if err != nil {
				return g, formatCUEError(err)
			}
			kind, ok := parseVarKind(s)
			if !ok {
				return g, &CompileError{Field: fmt.Sprintf("goal.%s.vars.%s", name, label), Message: fmt.Sprintf("unknown variable kind %q", s), Pos: iter.Value().Pos()}
			}
			sc.vars[label] = ir.TyInfer{Index: len(sc.vars), Kind: kind}
		}
	}

	if g.Site, err = parseSite(g.Query, sc); err != nil {
		return g, fieldError(v, "goal."+name+".query", err)
	}
	g.Vars = make([]CallerVar, len(sc.vars))
	for n, tv := range sc.vars {
		g.Vars[tv.Index] = CallerVar{Name: n, Kind: tv.Kind}
	}
	return g, nil
}

func parseVarKind(s string) (ir.VarKind, bool) {
	for _, k := range []ir.VarKind{ir.VarGeneral, ir.VarInteger, ir.VarFloat} {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

func stringList(v cue.Value, field string) ([]string, error) {
	lv := v.LookupPath(cue.ParsePath(field))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func optString(v cue.Value, field, def string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(field))
	if !sv.Exists() {
		return def, nil
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optBool(v cue.Value, field string) (bool, error) {
	bv := v.LookupPath(cue.ParsePath(field))
	if !bv.Exists() {
		return false, nil
	}
	b, err := bv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func fieldError(v cue.Value, field string, err error) *CompileError {
	return &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
