package queryir

import "github.com/roach88/tsolve/internal/ir"

// TraceFilter selects solve events. Zero fields do not filter.
type TraceFilter struct {
	Session  string
	Program  string // joins sessions
	Goal     string
	Trait    string
	Kinds    []string
	Guidance string
	MinFuel  int64
	Limit    int
}

// Query builds the query for f. The result always has the shape of a
// solve_events select.
func (f TraceFilter) Query() Query {
	var preds []Predicate
	eq := func(field, value string) {
		if value != "" {
			preds = append(preds, Equals{Field: field, Value: ir.IRString(value)})
		}
	}
	eq("solve_events.session_id", f.Session)
	eq("solve_events.goal_name", f.Goal)
	eq("solve_events.trait", f.Trait)
	eq("solve_events.guidance", f.Guidance)
	if len(f.Kinds) > 0 {
		vals := make([]ir.IRValue, len(f.Kinds))
		for i, k := range f.Kinds {
			vals[i] = ir.IRString(k)
		}
		preds = append(preds, In{Field: "solve_events.kind", Values: vals})
	}
	if f.MinFuel > 0 {
		preds = append(preds, AtLeast{Field: "solve_events.fuel_used", Value: f.MinFuel})
	}

	events := Select{From: TableSolveEvents, Limit: f.Limit}
	if len(preds) > 0 {
		events.Filter = And{Predicates: preds}
	}
	if f.Program == "" {
		return events
	}
	return Join{
		Left: events,
		Right: Select{
			From:   TableSessions,
			Filter: Equals{Field: "sessions.program", Value: ir.IRString(f.Program)},
		},
		On: FieldEquals{Left: "solve_events.session_id", Right: "sessions.id"},
	}
}
