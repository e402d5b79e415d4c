package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/tsolve/internal/queryir"
	"github.com/roach88/tsolve/internal/querysql"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

var (
	sessionColumns = strings.Join(queryir.Columns(queryir.TableSessions), ", ")
	eventColumns   = strings.Join(queryir.Columns(queryir.TableSolveEvents), ", ")
)

type scanner interface {
	Scan(dest ...any) error
}

// scanSession scans columns in queryir.Columns(TableSessions) order.
func scanSession(row scanner) (Session, error) {
	var s Session
	if err := row.Scan(&s.ID, &s.Program, &s.Fuel, &s.EngineVersion, &s.Seq); err != nil {
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	return s, nil
}

// scanEvent scans columns in queryir.Columns(TableSolveEvents) order.
func scanEvent(row scanner) (SolveEvent, error) {
	var e SolveEvent
	err := row.Scan(
		&e.ID, &e.SessionID, &e.Seq, &e.GoalName, &e.GoalKey, &e.Goal, &e.GoalText,
		&e.Trait, &e.Kind, &e.Guidance, &e.Solution, &e.SolutionText, &e.SolutionHash,
		&e.FuelUsed, &e.Candidates,
	)
	if err != nil {
		return SolveEvent{}, fmt.Errorf("scan solve event: %w", err)
	}
	return e, nil
}

// ReadSession returns the session with the given id.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("read session %s: %w", id, ErrNotFound)
	}
	return sess, err
}

// ListSessions returns all sessions ordered by seq ASC, id ASC.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// LatestSession returns the most recent session, optionally restricted to
// one program ("" matches any).
func (s *Store) LatestSession(ctx context.Context, program string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE ? = '' OR program = ?
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, program, program)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("latest session: %w", ErrNotFound)
	}
	return sess, err
}

// ReadSessionEvents returns a session's events ordered by seq ASC, id ASC.
func (s *Store) ReadSessionEvents(ctx context.Context, sessionID string) ([]SolveEvent, error) {
	return s.QueryEvents(ctx, queryir.TraceFilter{Session: sessionID}.Query())
}

// ReadSolveEvent returns the event with the given row id.
func (s *Store) ReadSolveEvent(ctx context.Context, id int64) (SolveEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM solve_events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SolveEvent{}, fmt.Errorf("read solve event %d: %w", id, ErrNotFound)
	}
	return ev, err
}

// QueryEvents runs a query that has the shape of a full solve_events
// select (no Fields) and returns the matching events.
func (s *Store) QueryEvents(ctx context.Context, q queryir.Query) ([]SolveEvent, error) {
	var from queryir.Select
	switch query := q.(type) {
	case queryir.Select:
		from = query
	case queryir.Join:
		from = query.Left
	default:
		return nil, fmt.Errorf("query events: unsupported query type %T", q)
	}
	if from.From != queryir.TableSolveEvents || len(from.Fields) > 0 {
		return nil, fmt.Errorf("query events: query must select all solve_events columns")
	}

	sqlText, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []SolveEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate solve events: %w", err)
	}
	return events, nil
}

// LastSeq returns the highest seq across sessions and events, 0 for an
// empty log. A Clock started at LastSeq continues the log.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(
			COALESCE((SELECT MAX(seq) FROM sessions), 0),
			COALESCE((SELECT MAX(seq) FROM solve_events), 0)
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}
