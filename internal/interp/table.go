package interp

import (
	"fmt"
	"sync"

	"github.com/roach88/tsolve/internal/ir"
)

// InferenceStore is the caller's inference state as Apply sees it.
type InferenceStore interface {
	// Probe returns the value v is bound to, if any.
	Probe(v ir.TyInfer) (ir.Ty, bool)
	// Bind binds an unbound variable.
	Bind(v ir.TyInfer, ty ir.Ty) error
	// Hint records a non-binding suggestion for v.
	Hint(v ir.TyInfer, ty ir.Ty)
	// NewVar allocates a fresh unbound variable.
	NewVar(kind ir.VarKind) ir.TyInfer
}

// BindError reports a binding the store refused.
type BindError struct {
	Var    ir.TyInfer
	Ty     ir.Ty
	Reason string
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s := %s: %s", e.Var, e.Ty, e.Reason)
}

type tableVar struct {
	kind  ir.VarKind
	value ir.Ty
	hint  ir.Ty
}

// Table is a simple InferenceStore. It is safe for concurrent use.
type Table struct {
	mu   sync.Mutex
	vars []tableVar
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{}
}

// NewVar implements InferenceStore.
func (t *Table) NewVar(kind ir.VarKind) ir.TyInfer {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.vars = append(t.vars, tableVar{kind: kind})
	return ir.TyInfer{Index: len(t.vars) - 1, Kind: kind}
}

// Probe implements InferenceStore.
func (t *Table) Probe(v ir.TyInfer) (ir.Ty, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v.Index < 0 || v.Index >= len(t.vars) || t.vars[v.Index].value == nil {
		return nil, false
	}
	return t.vars[v.Index].value, true
}

// Bind implements InferenceStore.
func (t *Table) Bind(v ir.TyInfer, ty ir.Ty) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v.Index < 0 || v.Index >= len(t.vars) {
		return &BindError{Var: v, Ty: ty, Reason: "unknown variable"}
	}
	e := &t.vars[v.Index]
	if e.value != nil {
		return &BindError{Var: v, Ty: ty, Reason: "already bound to " + e.value.String()}
	}
	if !ir.AdmitsKind(e.kind, ty) {
		if w, ok := ty.(ir.TyInfer); !ok || (w.Kind != e.kind && w.Kind != ir.VarGeneral) {
			return &BindError{Var: v, Ty: ty, Reason: "not a " + e.kind.String()}
		}
	}
	e.value = ty
	e.hint = nil
	return nil
}

// Hint implements InferenceStore. Hints on bound variables are ignored.
func (t *Table) Hint(v ir.TyInfer, ty ir.Ty) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v.Index < 0 || v.Index >= len(t.vars) || t.vars[v.Index].value != nil {
		return
	}
	t.vars[v.Index].hint = ty
}

// HintFor returns the hint recorded for v.
func (t *Table) HintFor(v ir.TyInfer) (ir.Ty, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v.Index < 0 || v.Index >= len(t.vars) || t.vars[v.Index].hint == nil {
		return nil, false
	}
	return t.vars[v.Index].hint, true
}

// Len returns the number of variables allocated.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.vars)
}

// Resolve substitutes every bound variable in ty.
func (t *Table) Resolve(ty ir.Ty) ir.Ty {
	return resolveWith(ty, t.Probe)
}

func resolveWith(ty ir.Ty, probe func(ir.TyInfer) (ir.Ty, bool)) ir.Ty {
	return ir.MapTy(ty, func(n ir.Ty) (ir.Ty, bool) {
		v, ok := n.(ir.TyInfer)
		if !ok {
			return nil, false
		}
		if val, ok := probe(v); ok {
			return resolveWith(val, probe), true
		}
		return v, true
	})
}
