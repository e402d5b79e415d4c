// Package queryir provides the query intermediate representation for
// reading the solve log.
//
// The trace command builds a query from its filters; backends compile it.
//
//	[trace flags] → [Query IR] → [SQL Backend]
//
// The IR covers:
//   - Select(from, filter, fields, limit) - table access with filtering
//   - Join(left, right, on) - inner joins only
//   - Predicates: Equals, In, AtLeast, FieldEquals, And
//
// Field and table names are checked against a fixed catalog by Validate.
// Backends interpolate names into query text and pass values as
// parameters, so a query that fails validation must never be compiled.
//
// Query and Predicate are sealed interfaces using the marker method
// pattern, so backends can switch over every node type:
//
//	switch q := query.(type) {
//	case Select:
//	    // Handle select
//	case Join:
//	    // Handle join
//	}
//
// All literal values are ir.IRValue types, the same values canonical JSON
// is built from.
package queryir
