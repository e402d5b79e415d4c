package store

import (
	"context"
	"fmt"
)

// WriteSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING: rewriting a session is a no-op.
func (s *Store) WriteSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, program, fuel, engine_version, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.Program,
		sess.Fuel,
		sess.EngineVersion,
		sess.Seq,
	)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteSolveEvent inserts a solve event.
// Returns the row id and whether a new record was inserted.
//
// Uses ON CONFLICT(session_id, goal_key) DO NOTHING: an obligation is
// logged once per session. On conflict the existing id is returned with
// inserted=false.
//
// Note: The session referenced by SessionID must exist (foreign key constraint).
func (s *Store) WriteSolveEvent(ctx context.Context, ev SolveEvent) (id int64, inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("write solve event: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO solve_events
		(session_id, seq, goal_name, goal_key, goal, goal_text, trait, kind, guidance,
		 solution, solution_text, solution_hash, fuel_used, candidates)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, goal_key) DO NOTHING
	`,
		ev.SessionID,
		ev.Seq,
		ev.GoalName,
		ev.GoalKey,
		ev.Goal,
		ev.GoalText,
		ev.Trait,
		ev.Kind,
		ev.Guidance,
		ev.Solution,
		ev.SolutionText,
		ev.SolutionHash,
		ev.FuelUsed,
		ev.Candidates,
	)
	if err != nil {
		return 0, false, fmt.Errorf("write solve event: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("write solve event: rows affected: %w", err)
	}

	if rowsAffected > 0 {
		id, err = result.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("write solve event: last insert id: %w", err)
		}
		inserted = true
	} else {
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM solve_events
			WHERE session_id = ? AND goal_key = ?
		`, ev.SessionID, ev.GoalKey).Scan(&id)
		if err != nil {
			return 0, false, fmt.Errorf("write solve event: select existing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("write solve event: commit: %w", err)
	}
	return id, inserted, nil
}
