package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/tsolve/internal/ir"
	"github.com/roach88/tsolve/internal/queryir"
)

func showGoal(self ir.Ty) ir.InEnvironment[ir.Goal] {
	return ir.NewInEnvironment[ir.Goal](nil, ir.TraitGoal{Ref: ir.TraitRef{Trait: "Show", Self: self}})
}

func mustEvent(t *testing.T, name string, obl ir.InEnvironment[ir.Goal], sol ir.Solution) SolveEvent {
	t.Helper()
	ev, err := NewSolveEvent(name, obl, sol, 3, 2)
	if err != nil {
		t.Fatalf("NewSolveEvent() failed: %v", err)
	}
	return ev
}

// seedSession writes a session with one event per goal, stamped by clock.
func seedSession(t *testing.T, s *Store, clock *Clock, id, program string, events ...SolveEvent) {
	t.Helper()
	ctx := context.Background()
	if err := s.WriteSession(ctx, Session{ID: id, Program: program, Fuel: 100, EngineVersion: "test", Seq: clock.Next()}); err != nil {
		t.Fatalf("WriteSession() failed: %v", err)
	}
	for _, ev := range events {
		ev.SessionID = id
		ev.Seq = clock.Next()
		if _, _, err := s.WriteSolveEvent(ctx, ev); err != nil {
			t.Fatalf("WriteSolveEvent(%s) failed: %v", ev.GoalName, err)
		}
	}
}

func TestNewSolveEvent(t *testing.T) {
	sol := ir.Ambiguous{Guidance: ir.Unknown{}}
	ev := mustEvent(t, "g", showGoal(ir.App("Widget")), sol)

	if ev.Trait != "Show" {
		t.Errorf("Trait = %q, want Show", ev.Trait)
	}
	if ev.Kind != ir.KindAmbiguous || ev.Guidance != "unknown" {
		t.Errorf("Kind/Guidance = %q/%q", ev.Kind, ev.Guidance)
	}
	if ev.SolutionHash != ir.MustSolutionHash(sol) {
		t.Error("SolutionHash does not match ir.SolutionHash")
	}
	if ev.GoalText != "Widget: Show" {
		t.Errorf("GoalText = %q", ev.GoalText)
	}
	if ev.FuelUsed != 3 || ev.Candidates != 2 {
		t.Errorf("stats = %d/%d", ev.FuelUsed, ev.Candidates)
	}

	// Alpha-equivalent goals share a key.
	a := mustEvent(t, "a", showGoal(ir.Infer(4)), ir.NoSolution{})
	b := mustEvent(t, "b", showGoal(ir.Infer(9)), ir.NoSolution{})
	if a.GoalKey != b.GoalKey {
		t.Error("alpha-equivalent goals should share a key")
	}

	wf := mustEvent(t, "wf", ir.NewInEnvironment[ir.Goal](nil, ir.WellFormedGoal{Ty: ir.App("u8")}), ir.Unique{})
	if wf.Trait != "" {
		t.Errorf("well-formedness Trait = %q, want empty", wf.Trait)
	}
}

func TestWriteSolveEvent_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	clock := NewClock()
	seedSession(t, s, clock, "s1", "basics")

	ev := mustEvent(t, "g", showGoal(ir.App("u8")), ir.Unique{})
	ev.SessionID = "s1"
	ev.Seq = clock.Next()

	id1, inserted, err := s.WriteSolveEvent(ctx, ev)
	if err != nil || !inserted {
		t.Fatalf("first write: id=%d inserted=%v err=%v", id1, inserted, err)
	}

	ev.GoalName = "renamed"
	ev.Seq = clock.Next()
	id2, inserted, err := s.WriteSolveEvent(ctx, ev)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if inserted || id2 != id1 {
		t.Errorf("second write: id=%d inserted=%v, want id=%d inserted=false", id2, inserted, id1)
	}

	got, err := s.ReadSolveEvent(ctx, id1)
	if err != nil {
		t.Fatalf("ReadSolveEvent() failed: %v", err)
	}
	if got.GoalName != "g" {
		t.Errorf("GoalName = %q, first write should win", got.GoalName)
	}
}

func TestWriteSolveEvent_RequiresSession(t *testing.T) {
	s := createTestStore(t)
	ev := mustEvent(t, "g", showGoal(ir.App("u8")), ir.Unique{})
	ev.SessionID = "missing"
	if _, _, err := s.WriteSolveEvent(context.Background(), ev); err == nil {
		t.Fatal("WriteSolveEvent() should fail for an unknown session")
	}
}

func TestReadSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	clock := NewClock()
	seedSession(t, s, clock, "s1", "basics")
	seedSession(t, s, clock, "s2", "other")
	seedSession(t, s, clock, "s3", "basics")

	sess, err := s.ReadSession(ctx, "s2")
	if err != nil {
		t.Fatalf("ReadSession() failed: %v", err)
	}
	if sess.Program != "other" || sess.Fuel != 100 || sess.Seq != 2 {
		t.Errorf("ReadSession() = %+v", sess)
	}

	if _, err := s.ReadSession(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadSession(nope) error = %v, want ErrNotFound", err)
	}

	all, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "s1" || all[2].ID != "s3" {
		t.Errorf("ListSessions() = %+v", all)
	}

	latest, err := s.LatestSession(ctx, "")
	if err != nil || latest.ID != "s3" {
		t.Errorf("LatestSession(\"\") = %+v, %v", latest, err)
	}
	latest, err = s.LatestSession(ctx, "other")
	if err != nil || latest.ID != "s2" {
		t.Errorf("LatestSession(other) = %+v, %v", latest, err)
	}
	if _, err := s.LatestSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LatestSession(missing) error = %v, want ErrNotFound", err)
	}
}

func TestReadSessionEvents_Order(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	clock := NewClock()
	seedSession(t, s, clock, "s1", "basics",
		mustEvent(t, "first", showGoal(ir.App("u8")), ir.Unique{}),
		mustEvent(t, "second", showGoal(ir.App("u16")), ir.NoSolution{}),
		mustEvent(t, "third", showGoal(ir.App("u32")), ir.Ambiguous{Guidance: ir.Unknown{}}),
	)
	seedSession(t, s, clock, "s2", "basics",
		mustEvent(t, "other", showGoal(ir.App("u8")), ir.Unique{}),
	)

	events, err := s.ReadSessionEvents(ctx, "s1")
	if err != nil {
		t.Fatalf("ReadSessionEvents() failed: %v", err)
	}
	var names []string
	for _, ev := range events {
		names = append(names, ev.GoalName)
	}
	if len(names) != 3 || names[0] != "first" || names[1] != "second" || names[2] != "third" {
		t.Errorf("events = %v", names)
	}

	last, err := s.LastSeq(ctx)
	if err != nil || last != 6 {
		t.Errorf("LastSeq() = %d, %v; want 6", last, err)
	}
}

func TestQueryEvents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	clock := NewClock()
	seedSession(t, s, clock, "s1", "basics",
		mustEvent(t, "a", showGoal(ir.App("u8")), ir.Unique{}),
		mustEvent(t, "b", showGoal(ir.App("u16")), ir.NoSolution{}),
	)
	seedSession(t, s, clock, "s2", "other",
		mustEvent(t, "c", showGoal(ir.App("u8")), ir.NoSolution{}),
	)

	tests := []struct {
		name   string
		filter queryir.TraceFilter
		want   []string
	}{
		{"all", queryir.TraceFilter{}, []string{"a", "b", "c"}},
		{"kind", queryir.TraceFilter{Kinds: []string{ir.KindNone}}, []string{"b", "c"}},
		{"program", queryir.TraceFilter{Program: "basics"}, []string{"a", "b"}},
		{"program and kind", queryir.TraceFilter{Program: "other", Kinds: []string{ir.KindNone}}, []string{"c"}},
		{"trait miss", queryir.TraceFilter{Trait: "Ord"}, nil},
		{"limit", queryir.TraceFilter{Limit: 1}, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := s.QueryEvents(ctx, tt.filter.Query())
			if err != nil {
				t.Fatalf("QueryEvents() failed: %v", err)
			}
			if len(events) != len(tt.want) {
				t.Fatalf("got %d events, want %v", len(events), tt.want)
			}
			for i, ev := range events {
				if ev.GoalName != tt.want[i] {
					t.Errorf("event %d = %s, want %s", i, ev.GoalName, tt.want[i])
				}
			}
		})
	}

	_, err := s.QueryEvents(ctx, queryir.Select{From: queryir.TableSessions})
	if err == nil {
		t.Error("QueryEvents() should reject a sessions select")
	}
}

func TestReplaySession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	clock := NewClock()
	seedSession(t, s, clock, "s1", "basics",
		mustEvent(t, "stable", showGoal(ir.App("u8")), ir.Unique{}),
		mustEvent(t, "drifted", showGoal(ir.App("u16")), ir.NoSolution{}),
		mustEvent(t, "broken", showGoal(ir.App("u32")), ir.Unique{}),
	)

	resolve := func(_ context.Context, ev SolveEvent) (ir.Solution, error) {
		switch ev.GoalName {
		case "drifted":
			return ir.Unique{}, nil
		case "broken":
			return nil, errors.New("goal no longer declared")
		}
		return ir.Unique{}, nil
	}

	report, err := s.ReplaySession(ctx, "s1", resolve)
	if err != nil {
		t.Fatalf("ReplaySession() failed: %v", err)
	}
	if report.Checked != 3 {
		t.Errorf("Checked = %d, want 3", report.Checked)
	}
	if report.OK() || len(report.Drifts) != 2 {
		t.Fatalf("Drifts = %+v", report.Drifts)
	}
	if d := report.Drifts[0]; d.GoalName != "drifted" || d.Want != "NoSolution" || d.Got != ir.Unique{}.String() {
		t.Errorf("drift[0] = %+v", d)
	}
	if d := report.Drifts[1]; d.GoalName != "broken" || d.Err == "" {
		t.Errorf("drift[1] = %+v", d)
	}

	if _, err := s.ReplaySession(ctx, "missing", resolve); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReplaySession(missing) error = %v, want ErrNotFound", err)
	}
}

func TestClock(t *testing.T) {
	c := NewClockAt(5)
	if c.Current() != 5 || c.Next() != 6 || c.Current() != 6 {
		t.Error("clock should continue from its start value")
	}
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	if g.Generate() != "a" || g.Generate() != "b" {
		t.Error("ids should come back in order")
	}
	defer func() {
		if recover() == nil {
			t.Error("exhausted generator should panic")
		}
	}()
	g.Generate()
}

func TestUUIDv7Generator(t *testing.T) {
	var g UUIDv7Generator
	a, b := g.Generate(), g.Generate()
	if len(a) != 36 || a == b {
		t.Errorf("ids %q and %q", a, b)
	}
}
