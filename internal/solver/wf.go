package solver

import (
	"github.com/roach88/tsolve/internal/ir"
)

type wfVerdict int

const (
	wfHolds wfVerdict = iota
	wfFails
	wfUnknown
)

// solveWellFormed proves WF(ty) by reducing it to the bounds the type's
// declaration requires and to the well-formedness of its components.
func (s *search) solveWellFormed(g ir.WellFormedGoal, vars []ir.TyInfer) (ir.Solution, int) {
	out := newAttempts()
	if !s.consume(g, out) {
		return ir.Ambiguous{Guidance: ir.Unknown{}}, noDependency
	}

	conds, verdict := s.wfConditions(g.Ty)
	switch verdict {
	case wfFails:
		return ir.NoSolution{}, noDependency
	case wfUnknown:
		return ir.Ambiguous{Guidance: ir.Unknown{}}, noDependency
	}

	tb := newTable(vars)
	res := s.fulfill(tb, conds)
	out.depend(res.dep)
	if res.ok {
		out.cands = append(out.cands, candidate{
			subst:     tb.extract(len(vars)),
			ambiguous: res.ambiguous,
			origin:    "wf " + g.Ty.String(),
		})
	}
	return s.combine(out, false), out.dep
}

func (s *search) wfConditions(ty ir.Ty) ([]ir.Goal, wfVerdict) {
	wf := func(tys ...ir.Ty) []ir.Goal {
		goals := make([]ir.Goal, len(tys))
		for i, t := range tys {
			goals[i] = ir.WellFormedGoal{Ty: t}
		}
		return goals
	}

	switch t := ty.(type) {
	case ir.TyInfer:
		return nil, wfUnknown
	case ir.TyParam, ir.TyClosure:
		return nil, wfHolds
	case ir.TyApp:
		decl, ok := s.view.Type(t.Name)
		if !ok {
			return wf(t.Args...), wfHolds
		}
		if len(decl.Params) != len(t.Args) {
			return nil, wfFails
		}
		var conds []ir.Goal
		for _, ref := range decl.Where {
			conds = append(conds, ir.TraitGoal{Ref: ir.MapTraitRef(ref, func(x ir.Ty) ir.Ty {
				return ir.SubstBound(x, t.Args)
			})})
		}
		return append(conds, wf(t.Args...)...), wfHolds
	case ir.TyFn:
		return wf(append(append([]ir.Ty{}, t.Params...), t.Ret)...), wfHolds
	case ir.TyProjection:
		conds := []ir.Goal{ir.TraitGoal{Ref: t.TraitRef()}}
		return append(conds, wf(append([]ir.Ty{t.Self}, t.Args...)...)...), wfHolds
	default:
		return nil, wfFails
	}
}
