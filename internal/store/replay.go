package store

import (
	"context"
	"fmt"

	"github.com/roach88/tsolve/internal/ir"
)

// Resolver re-solves the goal a logged event recorded.
type Resolver func(ctx context.Context, ev SolveEvent) (ir.Solution, error)

// Drift is a logged event whose replayed solution differs from the log.
type Drift struct {
	GoalName string `json:"goal_name"`
	GoalKey  string `json:"goal_key"`
	Want     string `json:"want"`
	Got      string `json:"got"`
	Err      string `json:"error,omitempty"`
}

// ReplayReport summarizes a replay of one session.
type ReplayReport struct {
	SessionID string  `json:"session_id"`
	Checked   int     `json:"checked"`
	Drifts    []Drift `json:"drifts"`
}

// OK reports whether every event replayed to the logged solution.
func (r ReplayReport) OK() bool {
	return len(r.Drifts) == 0
}

// ReplaySession re-solves every event of a session in log order and
// compares solution hashes. A resolver error is recorded as drift for
// that event and replay continues.
func (s *Store) ReplaySession(ctx context.Context, sessionID string, resolve Resolver) (ReplayReport, error) {
	if _, err := s.ReadSession(ctx, sessionID); err != nil {
		return ReplayReport{}, fmt.Errorf("replay: %w", err)
	}
	events, err := s.ReadSessionEvents(ctx, sessionID)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay: %w", err)
	}

	report := ReplayReport{SessionID: sessionID, Drifts: []Drift{}}
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		sol, err := resolve(ctx, ev)
		if err != nil {
			report.Drifts = append(report.Drifts, Drift{
				GoalName: ev.GoalName,
				GoalKey:  ev.GoalKey,
				Want:     ev.SolutionText,
				Err:      err.Error(),
			})
			continue
		}
		hash, err := ir.SolutionHash(sol)
		if err != nil {
			return report, fmt.Errorf("replay %s: %w", ev.GoalName, err)
		}
		if hash != ev.SolutionHash {
			report.Drifts = append(report.Drifts, Drift{
				GoalName: ev.GoalName,
				GoalKey:  ev.GoalKey,
				Want:     ev.SolutionText,
				Got:      sol.String(),
			})
		}
	}
	return report, nil
}
