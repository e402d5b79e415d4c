package interp

import (
	"fmt"

	"github.com/roach88/tsolve/internal/goal"
	"github.com/roach88/tsolve/internal/ir"
)

// Status summarises what Apply did.
type Status int

const (
	// StatusBound means caller variables now agree with the solution.
	StatusBound Status = iota
	// StatusHinted means suggestions were recorded; nothing was bound.
	StatusHinted
	// StatusDeferred means the solution carried no usable information.
	StatusDeferred
	// StatusUnsatisfiable means the obligation does not hold.
	StatusUnsatisfiable
	// StatusConflict means the solution disagrees with existing bindings.
	StatusConflict
)

func (s Status) String() string {
	switch s {
	case StatusBound:
		return "bound"
	case StatusHinted:
		return "hinted"
	case StatusDeferred:
		return "deferred"
	case StatusUnsatisfiable:
		return "unsatisfiable"
	case StatusConflict:
		return "conflict"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Binding is one caller variable bound or hinted by Apply.
type Binding struct {
	Var  ir.TyInfer
	Ty   ir.Ty
	Path string // site position of the placeholder being applied
}

func (b Binding) String() string {
	return fmt.Sprintf("%s := %s (%s)", b.Var, b.Ty, b.Path)
}

// HoleValue is the value a hole of the site resolved to. Ty is nil when the
// solution leaves the hole undetermined.
type HoleValue struct {
	Path string
	Ty   ir.Ty
}

// Outcome is the result of Apply.
type Outcome struct {
	Status Status

	// Bindings lists new bindings (StatusBound) or hints (StatusHinted) in
	// placeholder order. It is empty when a solution is applied again.
	Bindings []Binding

	// Holes lists hole values in placeholder order. Only set for
	// StatusBound.
	Holes []HoleValue

	// ConflictPath is the site position whose caller variable disagreed.
	ConflictPath string
}

// Apply writes sol onto store. vars must be the SolutionVariables returned
// when the solved obligation was encoded.
//
// An error means the inputs do not belong together or the store refused a
// binding Apply had already checked; both are integration faults.
func Apply(sol ir.Solution, vars goal.SolutionVariables, store InferenceStore) (Outcome, error) {
	switch s := sol.(type) {
	case ir.NoSolution:
		return Outcome{Status: StatusUnsatisfiable}, nil
	case ir.Unique:
		return bind(s.Subst, vars, store)
	case ir.Ambiguous:
		switch g := s.Guidance.(type) {
		case ir.Definite:
			return bind(g.Subst, vars, store)
		case ir.Suggested:
			return hint(g.Subst, vars, store)
		}
		return Outcome{Status: StatusDeferred}, nil
	default:
		return Outcome{}, fmt.Errorf("apply: unsupported solution %T", sol)
	}
}

func bind(sub ir.Substitution, vars goal.SolutionVariables, store InferenceStore) (Outcome, error) {
	a, err := newApplier(sub, vars, store)
	if err != nil {
		return Outcome{}, err
	}
	if path, ok := a.check(); !ok {
		return Outcome{Status: StatusConflict, ConflictPath: path}, nil
	}

	out := Outcome{Status: StatusBound}
	for _, p := range a.order {
		if p.v.Index < 0 {
			continue
		}
		val := a.commitTy(a.binds[p.v.Index])
		if err := store.Bind(p.v, val); err != nil {
			return Outcome{}, fmt.Errorf("apply %s: %w", p.path, err)
		}
		out.Bindings = append(out.Bindings, Binding{Var: p.v, Ty: val, Path: p.path})
	}
	for i, info := range vars.Vars {
		if info.Origin != goal.FromHole {
			continue
		}
		hv := HoleValue{Path: info.Path}
		if m, ok := a.mapped[i]; ok {
			if ty := a.allocated(m); !mentionsPending(ty) {
				hv.Ty = resolveWith(ty, store.Probe)
			}
		}
		out.Holes = append(out.Holes, hv)
	}
	return out, nil
}

func hint(sub ir.Substitution, vars goal.SolutionVariables, store InferenceStore) (Outcome, error) {
	a, err := newApplier(sub, vars, store)
	if err != nil {
		return Outcome{}, err
	}
	if _, ok := a.check(); !ok {
		return Outcome{Status: StatusDeferred}, nil
	}

	out := Outcome{Status: StatusHinted}
	for _, p := range a.order {
		val := resolveWith(a.binds[p.v.Index], a.probe)
		if p.v.Index < 0 || mentionsPending(val) {
			// Hints name caller types only.
			continue
		}
		store.Hint(p.v, val)
		out.Bindings = append(out.Bindings, Binding{Var: p.v, Ty: val, Path: p.path})
	}
	if len(out.Bindings) == 0 {
		out.Status = StatusDeferred
	}
	return out, nil
}

type pendingBind struct {
	v    ir.TyInfer
	path string
}

// applier unifies a substitution with caller state without touching the
// store. Bindings go to an overlay; solution variables with no caller
// counterpart become pending variables with negative indices, allocated in
// the store only if a committed binding mentions them.
type applier struct {
	sub   ir.Substitution
	vars  goal.SolutionVariables
	store InferenceStore

	mapped  map[int]ir.Ty // solution variable -> caller-space type
	binds   map[int]ir.Ty // overlay, caller or pending index -> value
	order   []pendingBind
	pending []ir.VarKind
	alloc   map[int]ir.TyInfer
	path    string
}

func newApplier(sub ir.Substitution, vars goal.SolutionVariables, store InferenceStore) (*applier, error) {
	if len(sub.Values) != vars.Len() {
		return nil, fmt.Errorf("apply: substitution has %d values for %d placeholders", len(sub.Values), vars.Len())
	}
	a := &applier{
		sub:    sub,
		vars:   vars,
		store:  store,
		mapped: make(map[int]ir.Ty),
		binds:  make(map[int]ir.Ty),
		alloc:  make(map[int]ir.TyInfer),
	}
	for i, info := range vars.Vars {
		if info.Origin == goal.FromCaller {
			a.mapped[i] = info.Caller
		}
	}
	return a, nil
}

// check unifies every caller placeholder with its value. It returns the
// path of the first disagreeing placeholder.
func (a *applier) check() (string, bool) {
	for i, info := range a.vars.Vars {
		if info.Origin != goal.FromCaller {
			continue
		}
		a.path = info.Path
		if !a.unify(a.sub.Values[i], info.Caller) {
			return info.Path, false
		}
	}
	// Holes not yet reached by a caller placeholder take their own value.
	for i, info := range a.vars.Vars {
		if info.Origin != goal.FromHole {
			continue
		}
		a.path = info.Path
		if m, ok := a.mapped[i]; ok {
			if !a.unifyCaller(m, a.materialize(a.sub.Values[i])) {
				return info.Path, false
			}
			continue
		}
		if v, ok := a.sub.Values[i].(ir.TyInfer); ok && v.Index == i {
			continue
		}
		a.mapped[i] = a.materialize(a.sub.Values[i])
	}
	return "", true
}

func (a *applier) probe(v ir.TyInfer) (ir.Ty, bool) {
	if val, ok := a.binds[v.Index]; ok {
		return val, true
	}
	if v.Index < 0 {
		return nil, false
	}
	return a.store.Probe(v)
}

func (a *applier) shallow(t ir.Ty) ir.Ty {
	for {
		v, ok := t.(ir.TyInfer)
		if !ok {
			return t
		}
		val, ok := a.probe(v)
		if !ok {
			return v
		}
		t = val
	}
}

func (a *applier) newPending(kind ir.VarKind) ir.TyInfer {
	a.pending = append(a.pending, kind)
	return ir.TyInfer{Index: -len(a.pending), Kind: kind}
}

// materialize translates a solution-space type into caller space.
func (a *applier) materialize(p ir.Ty) ir.Ty {
	return ir.MapTy(p, func(n ir.Ty) (ir.Ty, bool) {
		v, ok := n.(ir.TyInfer)
		if !ok {
			return nil, false
		}
		if m, ok := a.mapped[v.Index]; ok {
			return m, true
		}
		kind := v.Kind
		if v.Index < a.vars.Len() {
			kind = a.vars.Vars[v.Index].Kind
		}
		m := a.newPending(kind)
		a.mapped[v.Index] = m
		return m, true
	})
}

// unify matches solution-space p against caller-space have.
func (a *applier) unify(p, have ir.Ty) bool {
	if v, ok := p.(ir.TyInfer); ok {
		if m, ok := a.mapped[v.Index]; ok {
			return a.unifyCaller(m, have)
		}
		h := a.shallow(have)
		if hv, ok := h.(ir.TyInfer); ok {
			if v.Kind != ir.VarGeneral && hv.Kind != v.Kind {
				return a.bindVar(hv, a.materialize(p))
			}
		} else if !ir.AdmitsKind(v.Kind, h) {
			return false
		}
		a.mapped[v.Index] = have
		return true
	}

	h := a.shallow(have)
	if hv, ok := h.(ir.TyInfer); ok {
		return a.bindVar(hv, a.materialize(p))
	}
	return a.structural(p, h, a.unify)
}

// unifyCaller unifies two caller-space types.
func (a *applier) unifyCaller(x, y ir.Ty) bool {
	x, y = a.shallow(x), a.shallow(y)
	xv, xVar := x.(ir.TyInfer)
	yv, yVar := y.(ir.TyInfer)
	switch {
	case xVar && yVar:
		if xv.Index == yv.Index {
			return true
		}
		// Bind the less constrained variable.
		if xv.Kind == ir.VarGeneral {
			return a.bindVar(xv, yv)
		}
		return a.bindVar(yv, xv)
	case xVar:
		return a.bindVar(xv, y)
	case yVar:
		return a.bindVar(yv, x)
	}
	return a.structural(x, y, a.unifyCaller)
}

func (a *applier) bindVar(v ir.TyInfer, ty ir.Ty) bool {
	if w, ok := ty.(ir.TyInfer); ok {
		if v.Kind != ir.VarGeneral && w.Kind != v.Kind {
			if w.Kind != ir.VarGeneral {
				return false
			}
			v, ty = w, v
		}
	} else if !ir.AdmitsKind(v.Kind, ty) {
		return false
	}
	if a.occurs(v.Index, ty) {
		return false
	}
	a.binds[v.Index] = ty
	a.order = append(a.order, pendingBind{v: v, path: a.path})
	return true
}

func (a *applier) occurs(index int, ty ir.Ty) bool {
	found := false
	ir.WalkTy(resolveWith(ty, a.probe), func(n ir.Ty) bool {
		if v, ok := n.(ir.TyInfer); ok && v.Index == index {
			found = true
		}
		return !found
	})
	return found
}

// structural compares two non-variable types, recursing with rec.
func (a *applier) structural(x, y ir.Ty, rec func(ir.Ty, ir.Ty) bool) bool {
	all := func(xs, ys []ir.Ty) bool {
		if len(xs) != len(ys) {
			return false
		}
		for i := range xs {
			if !rec(xs[i], ys[i]) {
				return false
			}
		}
		return true
	}
	switch p := x.(type) {
	case ir.TyApp:
		q, ok := y.(ir.TyApp)
		return ok && p.Name == q.Name && all(p.Args, q.Args)
	case ir.TyProjection:
		q, ok := y.(ir.TyProjection)
		return ok && p.Trait == q.Trait && p.Assoc == q.Assoc &&
			rec(p.Self, q.Self) && all(p.Args, q.Args)
	case ir.TyFn:
		q, ok := y.(ir.TyFn)
		return ok && all(p.Params, q.Params) && rec(p.Ret, q.Ret)
	default:
		return ir.EqualTy(x, y)
	}
}

// commitTy resolves overlay bindings in ty and allocates store variables
// for pending variables that remain unbound.
func (a *applier) commitTy(ty ir.Ty) ir.Ty {
	return ir.MapTy(resolveWith(ty, a.probe), func(n ir.Ty) (ir.Ty, bool) {
		v, ok := n.(ir.TyInfer)
		if !ok || v.Index >= 0 {
			return nil, false
		}
		real, ok := a.alloc[v.Index]
		if !ok {
			real = a.store.NewVar(a.pending[-v.Index-1])
			a.alloc[v.Index] = real
		}
		return real, true
	})
}

// allocated resolves overlay bindings in ty and replaces pending variables
// that commitTy allocated. Others are left pending.
func (a *applier) allocated(ty ir.Ty) ir.Ty {
	return ir.MapTy(resolveWith(ty, a.probe), func(n ir.Ty) (ir.Ty, bool) {
		v, ok := n.(ir.TyInfer)
		if !ok || v.Index >= 0 {
			return nil, false
		}
		if real, ok := a.alloc[v.Index]; ok {
			return real, true
		}
		return v, true
	})
}

func mentionsPending(ty ir.Ty) bool {
	found := false
	ir.WalkTy(ty, func(n ir.Ty) bool {
		if v, ok := n.(ir.TyInfer); ok && v.Index < 0 {
			found = true
		}
		return !found
	})
	return found
}
