package queryir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tsolve/internal/ir"
)

// ValidationResult reports whether a query only names catalog tables and
// columns, and uses each predicate with a value it can compare.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate checks a query against the catalog. Returns all errors found.
//
// Rules:
//  1. Tables and columns must exist in the catalog
//  2. Qualified fields ("table.column") must name a table in the query
//  3. Equals and In take scalar values (string, int, bool)
//  4. Joins require an On predicate
//  5. Limit must not be negative
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{}
	v.validateQuery(query)
	return ValidationResult{
		Valid:  len(v.errors) == 0,
		Errors: v.errors,
	}
}

type validator struct {
	errors []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addError("nil query")
	case Select:
		v.validateSelect(query, []string{query.From})
	case *Select:
		v.validateSelect(*query, []string{query.From})
	case Join:
		v.validateJoin(query)
	case *Join:
		v.validateJoin(*query)
	default:
		v.addError("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select, scope []string) {
	if _, ok := catalog[sel.From]; !ok {
		v.addError("unknown table %q", sel.From)
		return
	}
	for _, f := range sel.Fields {
		v.validateField(f, []string{sel.From})
	}
	if sel.Limit < 0 {
		v.addError("negative limit %d", sel.Limit)
	}
	v.validatePredicate(sel.Filter, scope)
}

func (v *validator) validateJoin(join Join) {
	scope := []string{join.Left.From, join.Right.From}
	v.validateSelect(join.Left, scope)
	v.validateSelect(join.Right, scope)
	if join.Right.Limit != 0 {
		v.addError("limit on the right side of a join")
	}
	if join.On == nil {
		v.addError("join without On predicate")
		return
	}
	v.validatePredicate(join.On, scope)
}

// validateField resolves a possibly qualified field. Unqualified fields
// resolve against the first table in scope that has them.
func (v *validator) validateField(field string, scope []string) {
	if table, col, ok := strings.Cut(field, "."); ok {
		if !slices.Contains(scope, table) {
			v.addError("field %q names table %q outside the query", field, table)
			return
		}
		if !slices.Contains(catalog[table], col) {
			v.addError("unknown column %q in table %q", col, table)
		}
		return
	}
	for _, table := range scope {
		if slices.Contains(catalog[table], field) {
			return
		}
	}
	v.addError("unknown column %q", field)
}

func (v *validator) validatePredicate(p Predicate, scope []string) {
	switch pred := p.(type) {
	case nil:
		// No filter.
	case Equals:
		v.validateField(pred.Field, scope)
		v.validateScalar(pred.Field, pred.Value)
	case *Equals:
		v.validatePredicate(*pred, scope)
	case In:
		v.validateField(pred.Field, scope)
		for _, val := range pred.Values {
			v.validateScalar(pred.Field, val)
		}
	case *In:
		v.validatePredicate(*pred, scope)
	case AtLeast:
		v.validateField(pred.Field, scope)
	case *AtLeast:
		v.validatePredicate(*pred, scope)
	case FieldEquals:
		v.validateField(pred.Left, scope)
		v.validateField(pred.Right, scope)
	case *FieldEquals:
		v.validatePredicate(*pred, scope)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub, scope)
		}
	case *And:
		v.validatePredicate(*pred, scope)
	default:
		v.addError("unknown predicate type: %T", p)
	}
}

func (v *validator) validateScalar(field string, val ir.IRValue) {
	switch val.(type) {
	case ir.IRString, ir.IRInt, ir.IRBool:
	default:
		v.addError("field %q compared to non-scalar value %T", field, val)
	}
}
