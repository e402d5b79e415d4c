package solver

import (
	"slices"

	"github.com/roach88/tsolve/internal/ir"
)

// table is the inference table of one candidate attempt. Variables
// 0..n-1 are the canonical variables of the goal being solved; later ones
// instantiate clause binders or solution-local fresh variables.
type table struct {
	vars  []varEntry
	binds int
}

type varEntry struct {
	kind  ir.VarKind
	value ir.Ty // nil while unbound
}

func newTable(canonical []ir.TyInfer) *table {
	t := &table{vars: make([]varEntry, len(canonical))}
	for i, v := range canonical {
		t.vars[i].kind = v.Kind
	}
	return t
}

func (t *table) newVar(kind ir.VarKind) ir.TyInfer {
	t.vars = append(t.vars, varEntry{kind: kind})
	return ir.TyInfer{Index: len(t.vars) - 1, Kind: kind}
}

// instantiate replaces a clause's binder variables with fresh variables.
func (t *table) instantiate(c ir.Clause) (ir.Goal, []ir.Goal) {
	values := make([]ir.Ty, c.Binders)
	for i := range values {
		values[i] = t.newVar(ir.VarGeneral)
	}
	head := ir.SubstBoundGoal(c.Head, values)
	conds := make([]ir.Goal, len(c.Conditions))
	for i, g := range c.Conditions {
		conds[i] = ir.SubstBoundGoal(g, values)
	}
	return head, conds
}

// shallow follows bindings until it reaches an unbound variable or a
// non-variable type.
func (t *table) shallow(ty ir.Ty) ir.Ty {
	for {
		v, ok := ty.(ir.TyInfer)
		if !ok {
			return ty
		}
		e := t.vars[v.Index]
		if e.value == nil {
			return ir.TyInfer{Index: v.Index, Kind: e.kind}
		}
		ty = e.value
	}
}

// resolve substitutes every bound variable in ty.
func (t *table) resolve(ty ir.Ty) ir.Ty {
	return ir.MapTy(ty, func(n ir.Ty) (ir.Ty, bool) {
		if _, ok := n.(ir.TyInfer); !ok {
			return nil, false
		}
		s := t.shallow(n)
		if v, ok := s.(ir.TyInfer); ok {
			return v, true
		}
		return t.resolve(s), true
	})
}

func (t *table) resolveGoal(g ir.Goal) ir.Goal {
	return ir.MapGoal(g, t.resolve)
}

type tableSnapshot struct {
	vars  []varEntry
	binds int
}

func (t *table) snapshot() tableSnapshot {
	return tableSnapshot{vars: slices.Clone(t.vars), binds: t.binds}
}

func (t *table) rollback(s tableSnapshot) {
	t.vars = s.vars
	t.binds = s.binds
}

// unifier unifies two types, collecting projection equalities it cannot
// decide structurally.
//
// In normal mode, a projection meeting a different non-variable type is
// deferred as a ProjectionGoal for the solver to normalise. In rigid mode
// projections are opaque: they unify only with variables and with
// structurally identical projections.
type unifier struct {
	t        *table
	rigid    bool
	deferred []ir.Goal
}

func (t *table) unify(a, b ir.Ty) ([]ir.Goal, bool) {
	u := &unifier{t: t}
	ok := u.unify(a, b)
	return u.deferred, ok
}

func (t *table) unifyRigid(a, b ir.Ty) bool {
	u := &unifier{t: t, rigid: true}
	return u.unify(a, b)
}

// unifyGoal unifies a goal with a clause head of the same shape.
func (t *table) unifyGoal(g, head ir.Goal) ([]ir.Goal, bool) {
	u := &unifier{t: t}
	switch goal := g.(type) {
	case ir.TraitGoal:
		h, ok := head.(ir.TraitGoal)
		if !ok || !u.traitRef(goal.Ref, h.Ref) {
			return nil, false
		}
	case ir.ProjectionGoal:
		h, ok := head.(ir.ProjectionGoal)
		if !ok || goal.Projection.Assoc != h.Projection.Assoc ||
			!u.traitRef(goal.Projection.TraitRef(), h.Projection.TraitRef()) ||
			!u.unify(goal.Expected, h.Expected) {
			return nil, false
		}
	default:
		return nil, false
	}
	return u.deferred, true
}

func (u *unifier) traitRef(a, b ir.TraitRef) bool {
	return a.Trait == b.Trait && u.unify(a.Self, b.Self) && u.all(a.Args, b.Args)
}

func (u *unifier) all(as, bs []ir.Ty) bool {
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if !u.unify(as[i], bs[i]) {
			return false
		}
	}
	return true
}

func (u *unifier) unify(a, b ir.Ty) bool {
	a = u.t.shallow(a)
	b = u.t.shallow(b)

	av, aVar := a.(ir.TyInfer)
	bv, bVar := b.(ir.TyInfer)
	switch {
	case aVar && bVar:
		return u.t.unifyVars(av, bv)
	case aVar:
		return u.t.bind(av, b)
	case bVar:
		return u.t.bind(bv, a)
	}

	ap, aProj := a.(ir.TyProjection)
	bp, bProj := b.(ir.TyProjection)
	if aProj || bProj {
		if aProj && bProj && ap.Trait == bp.Trait && ap.Assoc == bp.Assoc {
			if u.rigid {
				return u.unify(ap.Self, bp.Self) && u.all(ap.Args, bp.Args)
			}
			if ir.EqualTy(u.t.resolve(a), u.t.resolve(b)) {
				return true
			}
		}
		if u.rigid {
			return false
		}
		if aProj {
			u.deferred = append(u.deferred, ir.ProjectionGoal{Projection: ap, Expected: b})
		} else {
			u.deferred = append(u.deferred, ir.ProjectionGoal{Projection: bp, Expected: a})
		}
		return true
	}

	switch x := a.(type) {
	case ir.TyApp:
		y, ok := b.(ir.TyApp)
		return ok && x.Name == y.Name && u.all(x.Args, y.Args)
	case ir.TyParam:
		y, ok := b.(ir.TyParam)
		return ok && x.Name == y.Name
	case ir.TyBound:
		y, ok := b.(ir.TyBound)
		return ok && x.Index == y.Index
	case ir.TyFn:
		y, ok := b.(ir.TyFn)
		return ok && u.all(x.Params, y.Params) && u.unify(x.Ret, y.Ret)
	case ir.TyClosure:
		y, ok := b.(ir.TyClosure)
		return ok && x.ID == y.ID
	default:
		return false
	}
}

func (t *table) unifyVars(a, b ir.TyInfer) bool {
	if a.Index == b.Index {
		return true
	}
	ka, kb := t.vars[a.Index].kind, t.vars[b.Index].kind
	kind := ka
	switch {
	case ka == kb:
	case ka == ir.VarGeneral:
		kind = kb
	case kb == ir.VarGeneral:
	default:
		return false
	}
	lo, hi := a.Index, b.Index
	if lo > hi {
		lo, hi = hi, lo
	}
	t.vars[lo].kind = kind
	t.vars[hi].value = ir.TyInfer{Index: lo, Kind: kind}
	t.binds++
	return true
}

func (t *table) bind(v ir.TyInfer, ty ir.Ty) bool {
	kind := t.vars[v.Index].kind
	if !ir.AdmitsKind(kind, ty) {
		return false
	}
	if t.occurs(v.Index, ty) {
		return false
	}
	t.vars[v.Index].value = ty
	t.binds++
	return true
}

func (t *table) occurs(index int, ty ir.Ty) bool {
	found := false
	ir.WalkTy(t.resolve(ty), func(n ir.Ty) bool {
		if v, ok := n.(ir.TyInfer); ok && v.Index == index {
			found = true
		}
		return !found
	})
	return found
}

// extract reads the substitution for the first n (canonical) variables.
// Unbound variables beyond n are renumbered n, n+1, ... in order of first
// appearance.
func (t *table) extract(n int) ir.Substitution {
	fresh := map[int]int{}
	values := make([]ir.Ty, n)
	for i := range values {
		values[i] = ir.MapTy(t.resolve(ir.TyInfer{Index: i}), func(x ir.Ty) (ir.Ty, bool) {
			v, ok := x.(ir.TyInfer)
			if !ok {
				return nil, false
			}
			if v.Index < n {
				return v, true
			}
			idx, seen := fresh[v.Index]
			if !seen {
				idx = n + len(fresh)
				fresh[v.Index] = idx
			}
			return ir.TyInfer{Index: idx, Kind: v.Kind}, true
		})
	}
	return ir.Substitution{Values: values, Fresh: len(fresh)}
}

// applySolution unifies the table variables a subgoal was canonicalized
// from with the values its solution assigns. Solution-local fresh variables
// become new table variables. Projections in the solution are taken as
// they are.
func (t *table) applySolution(sub ir.Substitution, vars []ir.TyInfer) bool {
	n := len(sub.Values)
	fresh := make(map[int]ir.Ty)
	inst := func(ty ir.Ty) ir.Ty {
		return ir.MapTy(ty, func(x ir.Ty) (ir.Ty, bool) {
			v, ok := x.(ir.TyInfer)
			if !ok {
				return nil, false
			}
			if v.Index < n {
				return vars[v.Index], true
			}
			f, ok := fresh[v.Index]
			if !ok {
				f = t.newVar(v.Kind)
				fresh[v.Index] = f
			}
			return f, true
		})
	}
	for i, val := range sub.Values {
		if !t.unifyRigid(vars[i], inst(val)) {
			return false
		}
	}
	return true
}
