package solver

import (
	"log/slog"
	"math"
	"slices"

	"github.com/roach88/tsolve/internal/ir"
	"github.com/roach88/tsolve/internal/registry"
)

// noDependency marks a result that did not rely on any provisional result
// of a goal still on the stack.
const noDependency = math.MaxInt

// search is the per-call state of one Solve. It is never shared between
// calls.
type search struct {
	view   *registry.View
	env    *ir.Environment
	fuel   *Fuel
	stack  *goalStack
	cache  map[string]ir.Solution
	logger *slog.Logger
	stats  Stats
}

// candidate is one clause that matched the goal.
type candidate struct {
	subst     ir.Substitution
	ambiguous bool // some conditions could not be settled
	isDefault bool
	origin    string
}

// attempts accumulates the candidates of one source.
type attempts struct {
	cands     []candidate
	truncated bool
	dep       int
}

func newAttempts() *attempts {
	return &attempts{dep: noDependency}
}

func (a *attempts) depend(d int) {
	a.dep = min(a.dep, d)
}

// solve solves a canonical goal. It returns the solution and the
// shallowest stack depth whose provisional result the solution relied on.
func (s *search) solve(g ir.Goal) (ir.Solution, int) {
	key := ir.MustGoalKey(g)
	if sol, ok := s.cache[key]; ok {
		s.stats.CacheHits++
		return sol, noDependency
	}
	if depth, ok := s.stack.lookup(key); ok {
		e := s.stack.at(depth)
		e.consulted = true
		s.stats.CycleHits++
		s.logger.Debug("cycle", "goal", g.String(), "depth", depth, "coinductive", e.coinductive)
		return e.provisional, depth
	}

	_, vars := ir.Canonicalize(g)
	entry := &stackEntry{key: key, goal: g, coinductive: s.isCoinductive(g)}
	if entry.coinductive {
		entry.provisional = ir.Unique{Subst: ir.Identity(vars)}
	} else {
		entry.provisional = ir.NoSolution{}
	}
	depth := s.stack.push(entry)
	s.stats.MaxDepth = max(s.stats.MaxDepth, s.stack.depth())

	var sol ir.Solution
	var dep int
	for {
		entry.consulted = false
		sol, dep = s.solveNew(g, vars)
		if !entry.consulted || ir.EqualSolution(sol, entry.provisional) {
			break
		}
		if s.fuel.Exhausted() {
			// The provisional result never settled.
			sol = ir.Ambiguous{Guidance: ir.Unknown{}}
			break
		}
		entry.provisional = sol
	}
	s.stack.pop()

	if dep >= depth {
		dep = noDependency
	}
	if dep == noDependency {
		s.cache[key] = sol
	}
	return sol, dep
}

func (s *search) isCoinductive(g ir.Goal) bool {
	switch goal := g.(type) {
	case ir.TraitGoal:
		return s.view.IsAuto(goal.Ref.Trait)
	case ir.WellFormedGoal:
		return true
	default:
		return false
	}
}

func (s *search) solveNew(g ir.Goal, vars []ir.TyInfer) (ir.Solution, int) {
	switch goal := g.(type) {
	case ir.TraitGoal:
		return s.solveTrait(goal, vars)
	case ir.ProjectionGoal:
		return s.solveProjection(goal, vars)
	case ir.WellFormedGoal:
		return s.solveWellFormed(goal, vars)
	default:
		return ir.NoSolution{}, noDependency
	}
}

func isUnboundVar(t ir.Ty) bool {
	_, ok := t.(ir.TyInfer)
	return ok
}

func (s *search) solveTrait(g ir.TraitGoal, vars []ir.TyInfer) (ir.Solution, int) {
	env := newAttempts()
	for _, c := range s.env.Clauses() {
		if h, ok := c.Head.(ir.TraitGoal); ok && h.Ref.Trait == g.Ref.Trait {
			s.try(g, vars, c, env)
		}
	}
	if len(env.cands) > 0 {
		return s.combine(env, true), env.dep
	}

	if isUnboundVar(g.Ref.Self) && s.view.HasImplementations(g.Ref.Trait) {
		// Every impl would match an unknown self type.
		return s.flounder(g, env)
	}

	impls := newAttempts()
	impls.truncated = env.truncated
	impls.depend(env.dep)
	for _, id := range s.view.ImplementationsFor(g.Ref.Trait) {
		if c, ok := s.view.ImplClause(id, g.Ref.Self); ok {
			s.try(g, vars, c, impls)
		}
	}
	return s.combine(impls, false), impls.dep
}

func (s *search) solveProjection(g ir.ProjectionGoal, vars []ir.TyInfer) (ir.Solution, int) {
	proj := g.Projection
	env := newAttempts()
	for _, c := range s.env.Clauses() {
		if h, ok := c.Head.(ir.ProjectionGoal); ok &&
			h.Projection.Trait == proj.Trait && h.Projection.Assoc == proj.Assoc {
			s.try(g, vars, c, env)
		}
	}
	if len(env.cands) > 0 {
		return s.combine(env, true), env.dep
	}

	values := s.view.ProjectionCandidates(proj.Trait, proj.Assoc)
	if isUnboundVar(proj.Self) && len(values) > 0 {
		return s.flounder(g, env)
	}

	impls := newAttempts()
	impls.truncated = env.truncated
	impls.depend(env.dep)
	for _, id := range values {
		if c, ok := s.view.AssocClause(id, proj.Self); ok {
			s.try(g, vars, c, impls)
		}
	}

	if len(impls.cands) == 0 && !impls.truncated {
		switch proj.Self.(type) {
		case ir.TyParam, ir.TyProjection:
			s.tryPlaceholder(g, vars, impls)
		}
	}
	return s.combine(impls, false), impls.dep
}

func (s *search) flounder(g ir.Goal, env *attempts) (ir.Solution, int) {
	s.logger.Debug("floundered", "goal", g.String())
	return ir.Ambiguous{Guidance: ir.Unknown{}}, env.dep
}

// consume spends fuel for one attempt at g, recording truncation in out.
func (s *search) consume(g ir.Goal, out *attempts) bool {
	if err := s.fuel.Consume(g.String()); err != nil {
		out.truncated = true
		if !s.stats.Truncated {
			s.logger.Warn("fuel exhausted", "goal", g.String(), "limit", s.fuel.Limit(), "error", err)
		}
		s.stats.Truncated = true
		return false
	}
	s.stats.Candidates++
	return true
}

// try attempts one clause against g and records the candidate in out when
// the head unifies and no condition fails.
func (s *search) try(g ir.Goal, vars []ir.TyInfer, c ir.Clause, out *attempts) {
	if !s.consume(g, out) {
		return
	}
	tb := newTable(vars)
	head, conds := tb.instantiate(c)
	deferred, ok := tb.unifyGoal(g, head)
	if !ok {
		s.logger.Debug("candidate", "goal", g.String(), "origin", c.Origin, "result", "mismatch")
		return
	}

	res := s.fulfill(tb, append(conds, deferred...))
	out.depend(res.dep)
	if !res.ok {
		s.logger.Debug("candidate", "goal", g.String(), "origin", c.Origin, "result", "failed")
		return
	}
	cand := candidate{
		subst:     tb.extract(len(vars)),
		ambiguous: res.ambiguous,
		isDefault: c.Default,
		origin:    c.Origin,
	}
	s.logger.Debug("candidate", "goal", g.String(), "origin", c.Origin,
		"result", "matched", "ambiguous", cand.ambiguous, "subst", cand.subst.String())
	out.cands = append(out.cands, cand)
}

// tryPlaceholder treats <T as Trait>::Assoc as an opaque type when T is
// rigid and nothing normalises the projection: the goal holds, with
// Expected equal to the projection itself, provided T: Trait holds.
func (s *search) tryPlaceholder(g ir.ProjectionGoal, vars []ir.TyInfer, out *attempts) {
	if !s.consume(g, out) {
		return
	}
	tb := newTable(vars)
	if !tb.unifyRigid(g.Expected, g.Projection) {
		return
	}
	res := s.fulfill(tb, []ir.Goal{ir.TraitGoal{Ref: g.Projection.TraitRef()}})
	out.depend(res.dep)
	if !res.ok {
		return
	}
	out.cands = append(out.cands, candidate{
		subst:     tb.extract(len(vars)),
		ambiguous: res.ambiguous,
		origin:    "placeholder " + g.Projection.String(),
	})
}

type fulfillResult struct {
	ok        bool
	ambiguous bool
	dep       int
}

// fulfill solves the conditions of a candidate in tb. Each condition is
// canonicalized and solved on its own; unique answers are unified back and
// definite guidance is applied. The loop repeats while it makes progress.
// Conditions still pending at the end make the candidate ambiguous.
func (s *search) fulfill(tb *table, pending []ir.Goal) fulfillResult {
	dep := noDependency
	for len(pending) > 0 {
		progress := false
		var next []ir.Goal
		for _, sg := range pending {
			canon, cvars := ir.Canonicalize(tb.resolveGoal(sg))
			sol, d := s.solve(canon)
			dep = min(dep, d)

			switch r := sol.(type) {
			case ir.NoSolution:
				return fulfillResult{dep: dep}
			case ir.Unique:
				if !tb.applySolution(r.Subst, cvars) {
					return fulfillResult{dep: dep}
				}
				progress = true
			case ir.Ambiguous:
				if def, ok := r.Guidance.(ir.Definite); ok {
					snap := tb.snapshot()
					before := tb.binds
					if !tb.applySolution(def.Subst, cvars) {
						tb.rollback(snap)
					} else if tb.binds > before {
						progress = true
					}
				}
				next = append(next, sg)
			}
		}
		pending = next
		if !progress {
			break
		}
	}
	return fulfillResult{ok: true, ambiguous: len(pending) > 0, dep: dep}
}

// combine folds the candidates of one source into a solution.
//
// Environment clauses (merge) may repeat each other, so candidates with
// identical answers count once, and a proven candidate settles any
// unsettled one with the same answer. A proven environment answer that
// binds no variables is unique even when later clauses went untried.
// Implementations never merge: two impls covering the same goal are
// ambiguous even when they agree.
func (s *search) combine(a *attempts, merge bool) ir.Solution {
	cands := a.cands
	if merge {
		cands = dedupe(cands)
	}

	switch {
	case len(cands) == 0 && a.truncated:
		return ir.Ambiguous{Guidance: ir.Unknown{}}
	case len(cands) == 0:
		return ir.NoSolution{}
	case len(cands) == 1 && !cands[0].ambiguous && (!a.truncated || merge && len(cands[0].subst.Values) == 0):
		return ir.Unique{Subst: cands[0].subst}
	case len(cands) == 1 && a.truncated:
		// Candidates that were never tried might disagree.
		return ir.Ambiguous{Guidance: ir.Suggested{Subst: cands[0].subst}}
	}

	if !a.truncated {
		first := cands[0].subst
		agree := true
		for _, c := range cands[1:] {
			if !c.subst.Equal(first) {
				agree = false
				break
			}
		}
		if agree && !first.IsIdentity() {
			return ir.Ambiguous{Guidance: ir.Definite{Subst: first}}
		}
	}

	var defaults []candidate
	for _, c := range cands {
		if c.isDefault {
			defaults = append(defaults, c)
		}
	}
	if len(defaults) == 1 {
		return ir.Ambiguous{Guidance: ir.Suggested{Subst: defaults[0].subst}}
	}
	return ir.Ambiguous{Guidance: ir.Unknown{}}
}

// dedupe keeps one candidate per answer, preferring a proven one.
func dedupe(cands []candidate) []candidate {
	var out []candidate
	for _, c := range cands {
		i := slices.IndexFunc(out, func(o candidate) bool { return o.subst.Equal(c.subst) })
		switch {
		case i < 0:
			out = append(out, c)
		case out[i].ambiguous && !c.ambiguous:
			out[i] = c
		}
	}
	return out
}
