package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/tsolve/internal/queryir"
	"github.com/roach88/tsolve/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s: %s => %s\n", i+1, event.Goal, event.Obligation, event.Solution)
		}
	}
	return buf.String()
}

// AssertionContext carries what final_state assertions query.
type AssertionContext struct {
	Store     *store.Store
	Ctx       context.Context
	SessionID string
}

// EvaluateAssertions runs every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("final_state assertion requires a solve log")
			} else {
				err = assertFinalState(actx, a)
			}
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

// matches reports whether ev passes the assertion's trait, kind and
// guidance filters. Trait is compared against the obligation text.
func matches(ev TraceEvent, a Assertion) bool {
	if a.Kind != "" && ev.Kind != a.Kind {
		return false
	}
	if a.Guidance != "" && ev.Guidance != a.Guidance {
		return false
	}
	if a.Trait != "" && !mentionsTrait(ev.Obligation, a.Trait) {
		return false
	}
	return true
}

func mentionsTrait(obligation, trait string) bool {
	return strings.Contains(obligation, ": "+trait) || strings.Contains(obligation, " as "+trait)
}

// assertTraceContains checks that the named goal was solved, with the
// given kind and guidance if set.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Goal == a.Goal && matches(ev, a) {
			return nil
		}
	}
	expected := "goal " + a.Goal
	if a.Kind != "" {
		expected += " with kind " + a.Kind
	}
	if a.Guidance != "" {
		expected += " and guidance " + a.Guidance
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that goals appear in the specified order.
// Goals need not be consecutive.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if _, seen := positions[ev.Goal]; !seen {
			positions[ev.Goal] = i + 1
		}
	}

	for _, g := range a.Goals {
		if positions[g] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all goals present: %v", a.Goals),
				Actual:   fmt.Sprintf("missing goal: %s", g),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Goals); i++ {
		prev, curr := a.Goals[i-1], a.Goals[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("goals in order: %v", a.Goals),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that exactly Count events match the filters.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if (a.Goal == "" || ev.Goal == a.Goal) && matches(ev, a) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d matching events", a.Count),
			Actual:   fmt.Sprintf("%d matching events", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState queries the solve log through a trace filter and
// checks the single matching event's columns.
func assertFinalState(actx *AssertionContext, a Assertion) error {
	filter := queryir.TraceFilter{
		Session:  actx.SessionID,
		Goal:     a.Goal,
		Trait:    a.Trait,
		Guidance: a.Guidance,
	}
	if a.Kind != "" {
		filter.Kinds = []string{a.Kind}
	}
	ctx := actx.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	events, err := actx.Store.QueryEvents(ctx, filter.Query())
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: "query solve log",
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	switch len(events) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("event where %s", describeFilter(a)),
			Actual:   "no event found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one event where %s", describeFilter(a)),
			Actual:   fmt.Sprintf("%d events matched (assertion is ambiguous)", len(events)),
		}
	}

	row := eventColumns(events[0])
	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		actual, ok := row[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("column %q to exist", key),
				Actual:   fmt.Sprintf("column %q not present in %v", key, queryir.Columns(queryir.TableSolveEvents)),
			}
		}
		if !stateValuesEqual(a.Expect[key], actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("column %q = %v (type %T)", key, a.Expect[key], a.Expect[key]),
				Actual:   fmt.Sprintf("column %q = %v (type %T)", key, actual, actual),
			}
		}
	}
	return nil
}

func describeFilter(a Assertion) string {
	var parts []string
	for _, kv := range [][2]string{{"goal", a.Goal}, {"trait", a.Trait}, {"kind", a.Kind}, {"guidance", a.Guidance}} {
		if kv[1] != "" {
			parts = append(parts, fmt.Sprintf("%s=%q", kv[0], kv[1]))
		}
	}
	return strings.Join(parts, " AND ")
}

// eventColumns maps solve_events column names to the event's values.
func eventColumns(ev store.SolveEvent) map[string]any {
	return map[string]any{
		"id":            ev.ID,
		"session_id":    ev.SessionID,
		"seq":           ev.Seq,
		"goal_name":     ev.GoalName,
		"goal_key":      ev.GoalKey,
		"goal":          ev.Goal,
		"goal_text":     ev.GoalText,
		"trait":         ev.Trait,
		"kind":          ev.Kind,
		"guidance":      ev.Guidance,
		"solution":      ev.Solution,
		"solution_text": ev.SolutionText,
		"solution_hash": ev.SolutionHash,
		"fuel_used":     int64(ev.FuelUsed),
		"candidates":    int64(ev.Candidates),
	}
}

// stateValuesEqual compares a YAML value with a column value. Integers
// compare numerically whatever their Go type.
func stateValuesEqual(expected, actual any) bool {
	if e, ok := toInt64(expected); ok {
		a, ok := toInt64(actual)
		return ok && e == a
	}
	return fmt.Sprint(expected) == fmt.Sprint(actual)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}
