package engine

import (
	"context"

	"github.com/roach88/tsolve/internal/ir"
	"github.com/roach88/tsolve/internal/store"
)

// Resolve re-solves a logged event against the runner's program. It
// implements store.Resolver.
//
// The goal is looked up by name and re-encoded; if its obligation key no
// longer matches the logged key the goal itself changed and no solution is
// returned.
func (r *Runner) Resolve(ctx context.Context, ev store.SolveEvent) (ir.Solution, error) {
	res, err := r.Solve(ctx, ev.GoalName)
	if err != nil {
		return nil, err
	}
	canon, _ := ir.Canonicalize(res.Obligation.Goal)
	key, err := ir.ObligationKey(ir.InEnvironment[ir.Goal]{Env: res.Obligation.Env, Goal: canon})
	if err != nil {
		return nil, err
	}
	if key != ev.GoalKey {
		return nil, &RunError{Code: ErrCodeGoalChanged, Goal: ev.GoalName, Message: "obligation differs from the logged one"}
	}
	return res.Solution, nil
}

// Replay re-solves every event of a logged session and reports drift.
func (r *Runner) Replay(ctx context.Context, sessionID string) (store.ReplayReport, error) {
	if r.store == nil {
		return store.ReplayReport{}, &RunError{Code: ErrCodeNoStore, Message: "replay needs a solve log"}
	}
	return r.store.ReplaySession(ctx, sessionID, r.Resolve)
}
