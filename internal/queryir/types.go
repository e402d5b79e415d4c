package queryir

import (
	"slices"

	"github.com/roach88/tsolve/internal/ir"
)

// Tables of the solve log.
const (
	TableSessions    = "sessions"
	TableSolveEvents = "solve_events"
)

// catalog lists each table's columns in storage order.
var catalog = map[string][]string{
	TableSessions: {"id", "program", "fuel", "engine_version", "seq"},
	TableSolveEvents: {
		"id", "session_id", "seq", "goal_name", "goal_key", "goal", "goal_text",
		"trait", "kind", "guidance", "solution", "solution_text", "solution_hash",
		"fuel_used", "candidates",
	},
}

// Columns returns the columns of table in storage order, or nil for an
// unknown table.
func Columns(table string) []string {
	return slices.Clone(catalog[table])
}

// Query represents an abstract query over the solve log.
//
// This is a sealed interface - only types in this package implement it.
//
// Query types:
//   - Select: table access with filtering
//   - Join: inner join of two selects
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = literal
//   - In: field is one of several literals
//   - AtLeast: field >= integer literal
//   - FieldEquals: field = field (join conditions)
//   - And: all predicates must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select represents a table access with filtering.
//
// Semantics:
//
//	SELECT <fields> FROM <from> WHERE <filter> LIMIT <limit>
//
// Example:
//
//	Select{
//	  From: TableSolveEvents,
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "trait", Value: ir.IRString("Show")},
//	    In{Field: "kind", Values: []ir.IRValue{ir.IRString("ambiguous"), ir.IRString("none")}},
//	  }},
//	}
//
// Empty Fields selects every catalog column in storage order. Limit 0
// means no limit.
type Select struct {
	From   string
	Filter Predicate // nil = no filter
	Fields []string
	Limit  int
}

func (Select) queryNode() {}

// Join represents an inner join of two selects.
//
// Semantics:
//
//	SELECT <left fields> FROM <left> JOIN <right> ON <on>
//	WHERE <left filter> AND <right filter>
//
// The result has the shape of Left; Right contributes only filtering.
// Fields in filters and On may be qualified as "table.column".
type Join struct {
	Left  Select
	Right Select
	On    Predicate // required
}

func (Join) queryNode() {}

// Equals represents a field-equals-literal predicate.
//
// Semantics:
//
//	<field> = <value>
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// In matches a field against a set of literals. An empty set matches
// nothing.
//
// Semantics:
//
//	<field> IN (<values>)
type In struct {
	Field  string
	Values []ir.IRValue
}

func (In) predicateNode() {}

// AtLeast matches an integer field against a lower bound.
//
// Semantics:
//
//	<field> >= <value>
type AtLeast struct {
	Field string
	Value int64
}

func (AtLeast) predicateNode() {}

// FieldEquals compares two fields, typically across a join.
//
// Semantics:
//
//	<left> = <right>
type FieldEquals struct {
	Left  string
	Right string
}

func (FieldEquals) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// Empty Predicates means "always true".
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
