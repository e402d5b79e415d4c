package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tsolve/internal/ir"
)

func TestValidate_ValidSelect(t *testing.T) {
	query := Select{
		From: TableSolveEvents,
		Filter: And{Predicates: []Predicate{
			Equals{Field: "trait", Value: ir.IRString("Show")},
			In{Field: "kind", Values: []ir.IRValue{ir.IRString("unique"), ir.IRString("none")}},
			AtLeast{Field: "fuel_used", Value: 10},
		}},
		Fields: []string{"goal_name", "kind"},
		Limit:  5,
	}

	result := Validate(query)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidate_PointerNodes(t *testing.T) {
	query := &Select{
		From:   TableSessions,
		Filter: &Equals{Field: "program", Value: ir.IRString("basics")},
	}
	assert.True(t, Validate(query).Valid)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{
			name:  "nil query",
			query: nil,
			want:  "nil query",
		},
		{
			name:  "unknown table",
			query: Select{From: "invocations"},
			want:  `unknown table "invocations"`,
		},
		{
			name:  "unknown field",
			query: Select{From: TableSolveEvents, Fields: []string{"goal_name; DROP TABLE sessions"}},
			want:  `unknown column "goal_name; DROP TABLE sessions"`,
		},
		{
			name: "unknown filter column",
			query: Select{
				From:   TableSessions,
				Filter: Equals{Field: "trait", Value: ir.IRString("Show")},
			},
			want: `unknown column "trait"`,
		},
		{
			name: "qualified field outside query",
			query: Select{
				From:   TableSolveEvents,
				Filter: Equals{Field: "sessions.program", Value: ir.IRString("x")},
			},
			want: `field "sessions.program" names table "sessions" outside the query`,
		},
		{
			name: "non-scalar value",
			query: Select{
				From:   TableSolveEvents,
				Filter: Equals{Field: "kind", Value: ir.IRArray{}},
			},
			want: `field "kind" compared to non-scalar value ir.IRArray`,
		},
		{
			name:  "negative limit",
			query: Select{From: TableSolveEvents, Limit: -1},
			want:  "negative limit -1",
		},
		{
			name:  "join without on",
			query: Join{Left: Select{From: TableSolveEvents}, Right: Select{From: TableSessions}},
			want:  "join without On predicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.query)
			assert.False(t, result.Valid)
			assert.Contains(t, result.Errors, tt.want)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	query := Select{
		From:   TableSolveEvents,
		Fields: []string{"nope"},
		Filter: And{Predicates: []Predicate{
			Equals{Field: "also_nope", Value: ir.IRInt(1)},
			FieldEquals{Left: "kind", Right: "missing"},
		}},
	}
	result := Validate(query)
	require.Len(t, result.Errors, 3)
}

func TestColumns(t *testing.T) {
	cols := Columns(TableSessions)
	assert.Equal(t, []string{"id", "program", "fuel", "engine_version", "seq"}, cols)

	// Callers get a copy.
	cols[0] = "changed"
	assert.Equal(t, "id", Columns(TableSessions)[0])

	assert.Nil(t, Columns("nope"))
}

func TestTraceFilter_Query(t *testing.T) {
	t.Run("empty filter", func(t *testing.T) {
		q := TraceFilter{}.Query()
		assert.Equal(t, Select{From: TableSolveEvents}, q)
		assert.True(t, Validate(q).Valid)
	})

	t.Run("event filters", func(t *testing.T) {
		q := TraceFilter{Trait: "Show", Kinds: []string{"ambiguous"}, MinFuel: 3, Limit: 10}.Query()
		sel, ok := q.(Select)
		require.True(t, ok)
		assert.Equal(t, 10, sel.Limit)
		assert.Equal(t, And{Predicates: []Predicate{
			Equals{Field: "solve_events.trait", Value: ir.IRString("Show")},
			In{Field: "solve_events.kind", Values: []ir.IRValue{ir.IRString("ambiguous")}},
			AtLeast{Field: "solve_events.fuel_used", Value: 3},
		}}, sel.Filter)
		assert.True(t, Validate(q).Valid)
	})

	t.Run("program joins sessions", func(t *testing.T) {
		q := TraceFilter{Program: "basics", Session: "s1"}.Query()
		join, ok := q.(Join)
		require.True(t, ok)
		assert.Equal(t, TableSessions, join.Right.From)
		assert.True(t, Validate(q).Valid, Validate(q).Errors)
	})
}
