package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/tsolve/internal/ir"
	"github.com/roach88/tsolve/internal/queryir"
)

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// Every query orders by seq ASC, id ASC COLLATE BINARY so results are
// identical across runs. Values are always parameters; names come only
// from a validated query.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a query to parameterized SQL.
// Returns (sql, params, error). Queries that fail queryir.Validate are
// rejected.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if res := queryir.Validate(q); !res.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(res.Errors, "; "))
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	case queryir.Join:
		return c.compileJoin(query)
	case *queryir.Join:
		return c.compileJoin(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var params []any
	var b strings.Builder

	fmt.Fprintf(&b, "SELECT %s FROM %s", c.compileFields(q, false), q.From)
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE " + filterSQL)
		params = filterParams
	}
	b.WriteString(" ORDER BY " + stableOrderKey(""))
	params = c.appendLimit(&b, params, q.Limit)
	return b.String(), params, nil
}

// compileFields renders the select list. Empty Fields selects every
// catalog column in storage order.
func (c *SQLCompiler) compileFields(q queryir.Select, qualify bool) string {
	fields := q.Fields
	if len(fields) == 0 {
		fields = queryir.Columns(q.From)
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		if qualify && !strings.Contains(f, ".") {
			f = q.From + "." + f
		}
		parts[i] = f
	}
	return strings.Join(parts, ", ")
}

// stableOrderKey returns the ORDER BY clause body, optionally qualified.
func stableOrderKey(table string) string {
	prefix := ""
	if table != "" {
		prefix = table + "."
	}
	return prefix + "seq ASC, " + prefix + "id ASC COLLATE BINARY"
}

func (c *SQLCompiler) appendLimit(b *strings.Builder, params []any, limit int) []any {
	if limit <= 0 {
		return params
	}
	b.WriteString(" LIMIT ?")
	return append(params, int64(limit))
}

// compilePredicate compiles a predicate to a WHERE clause fragment.
// Values are never interpolated.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		param, err := irValueToParam(pred.Value)
		if err != nil {
			return "", nil, fmt.Errorf("convert value: %w", err)
		}
		return pred.Field + " = ?", []any{param}, nil
	case *queryir.Equals:
		return c.compilePredicate(*pred)
	case queryir.In:
		if len(pred.Values) == 0 {
			return "1 = 0", nil, nil
		}
		params := make([]any, len(pred.Values))
		for i, v := range pred.Values {
			param, err := irValueToParam(v)
			if err != nil {
				return "", nil, fmt.Errorf("convert value: %w", err)
			}
			params[i] = param
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", ")
		return pred.Field + " IN (" + marks + ")", params, nil
	case *queryir.In:
		return c.compilePredicate(*pred)
	case queryir.AtLeast:
		return pred.Field + " >= ?", []any{pred.Value}, nil
	case *queryir.AtLeast:
		return c.compilePredicate(*pred)
	case queryir.FieldEquals:
		return pred.Left + " = " + pred.Right, nil, nil
	case *queryir.FieldEquals:
		return c.compilePredicate(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}
	return strings.Join(sqlParts, " AND "), allParams, nil
}

// compileJoin compiles an inner join. The select list and ordering come
// from the left side; both filters apply.
func (c *SQLCompiler) compileJoin(j queryir.Join) (string, []any, error) {
	onSQL, params, err := c.compilePredicate(j.On)
	if err != nil {
		return "", nil, fmt.Errorf("compile join ON: %w", err)
	}

	var where []string
	for _, side := range []queryir.Select{j.Left, j.Right} {
		if side.Filter == nil {
			continue
		}
		sql, p, err := c.compilePredicate(side.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile %s filter: %w", side.From, err)
		}
		where = append(where, sql)
		params = append(params, p...)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s INNER JOIN %s ON %s",
		c.compileFields(j.Left, true), j.Left.From, j.Right.From, onSQL)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY " + stableOrderKey(j.Left.From))
	params = c.appendLimit(&b, params, j.Left.Limit)
	return b.String(), params, nil
}

// irValueToParam converts a scalar ir.IRValue to a SQL parameter.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
