package store

import (
	"fmt"

	"github.com/roach88/tsolve/internal/ir"
)

// Session is one solver run over a program.
type Session struct {
	ID            string `json:"id"`
	Program       string `json:"program"`
	Fuel          int    `json:"fuel"`
	EngineVersion string `json:"engine_version"`
	Seq           int64  `json:"seq"`
}

// SolveEvent records the solution of one goal within a session.
type SolveEvent struct {
	ID           int64  `json:"id"`
	SessionID    string `json:"session_id"`
	Seq          int64  `json:"seq"`
	GoalName     string `json:"goal_name"`
	GoalKey      string `json:"goal_key"`
	Goal         string `json:"goal"`
	GoalText     string `json:"goal_text"`
	Trait        string `json:"trait"`
	Kind         string `json:"kind"`
	Guidance     string `json:"guidance"`
	Solution     string `json:"solution"`
	SolutionText string `json:"solution_text"`
	SolutionHash string `json:"solution_hash"`
	FuelUsed     int    `json:"fuel_used"`
	Candidates   int    `json:"candidates"`
}

// NewSolveEvent builds the record for a solved obligation. The goal is
// canonicalized before hashing so alpha-equivalent obligations share a
// key. SessionID and Seq are left for the caller.
func NewSolveEvent(name string, obl ir.InEnvironment[ir.Goal], sol ir.Solution, fuelUsed, candidates int) (SolveEvent, error) {
	canon, _ := ir.Canonicalize(obl.Goal)
	key, err := ir.ObligationKey(ir.InEnvironment[ir.Goal]{Env: obl.Env, Goal: canon})
	if err != nil {
		return SolveEvent{}, fmt.Errorf("solve event %s: %w", name, err)
	}
	goalJSON, err := ir.MarshalCanonical(ir.GoalToIR(canon))
	if err != nil {
		return SolveEvent{}, fmt.Errorf("solve event %s: marshal goal: %w", name, err)
	}
	solJSON, err := ir.MarshalCanonical(ir.SolutionToIR(sol))
	if err != nil {
		return SolveEvent{}, fmt.Errorf("solve event %s: marshal solution: %w", name, err)
	}
	hash, err := ir.SolutionHash(sol)
	if err != nil {
		return SolveEvent{}, fmt.Errorf("solve event %s: %w", name, err)
	}

	return SolveEvent{
		GoalName:     name,
		GoalKey:      key,
		Goal:         string(goalJSON),
		GoalText:     canon.String(),
		Trait:        goalTrait(canon),
		Kind:         ir.SolutionKind(sol),
		Guidance:     ir.GuidanceKind(sol),
		Solution:     string(solJSON),
		SolutionText: sol.String(),
		SolutionHash: hash,
		FuelUsed:     fuelUsed,
		Candidates:   candidates,
	}, nil
}

// goalTrait returns the trait a goal is about, or "" for well-formedness.
func goalTrait(g ir.Goal) string {
	switch goal := g.(type) {
	case ir.TraitGoal:
		return goal.Ref.Trait
	case ir.ProjectionGoal:
		return goal.Projection.Trait
	}
	return ""
}
