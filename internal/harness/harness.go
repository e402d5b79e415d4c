package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/tsolve/internal/compiler"
	"github.com/roach88/tsolve/internal/engine"
	"github.com/roach88/tsolve/internal/goal"
	"github.com/roach88/tsolve/internal/ir"
	"github.com/roach88/tsolve/internal/store"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a fixed session
// id and a clock starting at zero, so traces are identical across runs.
// An error means the scenario could not be executed at all; failed
// expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	prog, err := compiler.LoadDir(scenario.Program)
	if err != nil {
		return nil, fmt.Errorf("failed to load program: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	sessionID := scenario.Session
	if sessionID == "" {
		sessionID = "scenario-" + scenario.Name
	}
	opts := []engine.Option{
		engine.WithStore(st),
		engine.WithClock(store.NewClock()),
		engine.WithIDGenerator(store.NewFixedGenerator(sessionID)),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithEngineVersion("test"),
	}
	if scenario.Fuel > 0 {
		opts = append(opts, engine.WithFuel(scenario.Fuel))
	}
	runner, err := engine.New(prog, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry: %w", err)
	}

	names := make([]string, len(scenario.Goals))
	for i, step := range scenario.Goals {
		names[i] = step.Goal
	}
	sess, err := runner.Run(ctx, names...)
	if err != nil {
		return nil, fmt.Errorf("failed to solve goals: %w", err)
	}

	seqs, err := eventSeqs(ctx, st, sess.ID)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	result.SessionID = sess.ID
	for i, res := range sess.Results {
		ev := traceEvent(res)
		ev.Seq = seqs[res.EventID]
		result.AddTrace(ev)
		for _, msg := range checkExpect(ev, scenario.Goals[i].Expect) {
			result.AddError(fmt.Sprintf("goal %s: %s", ev.Goal, msg))
		}
	}

	actx := &AssertionContext{Store: st, Ctx: ctx, SessionID: sess.ID}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func eventSeqs(ctx context.Context, st *store.Store, sessionID string) (map[int64]int64, error) {
	events, err := st.ReadSessionEvents(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read solve log: %w", err)
	}
	seqs := make(map[int64]int64, len(events))
	for _, ev := range events {
		seqs[ev.ID] = ev.Seq
	}
	return seqs, nil
}

// traceEvent converts a solved goal into its trace form.
func traceEvent(res engine.Result) TraceEvent {
	ev := TraceEvent{
		Goal:       res.Goal.Name,
		Query:      res.Goal.Query,
		Obligation: res.Obligation.Goal.String(),
		Kind:       ir.SolutionKind(res.Solution),
		Guidance:   ir.GuidanceKind(res.Solution),
		Solution:   res.Solution.String(),
		Status:     res.Outcome.Status.String(),
		FuelUsed:   res.Stats.FuelUsed,
	}
	if len(res.Goal.Vars) > 0 {
		ev.Bindings = make(map[string]string, len(res.Goal.Vars))
		for i, v := range res.Goal.Vars {
			ev.Bindings[v.Name] = res.Values[i].String()
		}
	}
	for _, v := range res.Vars.Vars {
		if v.Origin != goal.FromHole {
			continue
		}
		if ev.Holes == nil {
			ev.Holes = map[string]string{}
		}
		ev.Holes[v.Path] = "_"
	}
	for _, h := range res.Outcome.Holes {
		if h.Ty != nil {
			ev.Holes[h.Path] = h.Ty.String()
		}
	}
	return ev
}

// checkExpect compares a trace event with an expect clause and returns one
// message per mismatch.
func checkExpect(ev TraceEvent, expect *ExpectClause) []string {
	if expect == nil {
		return nil
	}
	var errs []string
	mismatch := func(field, want, got string) {
		errs = append(errs, fmt.Sprintf("%s: expected %q, got %q", field, want, got))
	}

	if ev.Kind != expect.Kind {
		mismatch("kind", expect.Kind, ev.Kind)
	}
	if expect.Guidance != "" && ev.Guidance != expect.Guidance {
		mismatch("guidance", expect.Guidance, ev.Guidance)
	}
	if expect.Solution != "" && ev.Solution != expect.Solution {
		mismatch("solution", expect.Solution, ev.Solution)
	}
	if expect.Status != "" && ev.Status != expect.Status {
		mismatch("status", expect.Status, ev.Status)
	}
	for _, name := range sortedKeys(expect.Bindings) {
		got, ok := ev.Bindings[name]
		if !ok {
			errs = append(errs, fmt.Sprintf("binding %s: goal has no caller variable %s", name, name))
			continue
		}
		if got != expect.Bindings[name] {
			mismatch("binding "+name, expect.Bindings[name], got)
		}
	}
	for _, path := range sortedKeys(expect.Holes) {
		got, ok := ev.Holes[path]
		if !ok {
			errs = append(errs, fmt.Sprintf("hole %s: goal has no hole at %s", path, path))
			continue
		}
		if got != expect.Holes[path] {
			mismatch("hole "+path, expect.Holes[path], got)
		}
	}
	return errs
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
