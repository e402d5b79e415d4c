package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tsolve/internal/compiler"
	"github.com/roach88/tsolve/internal/interp"
	"github.com/roach88/tsolve/internal/ir"
	"github.com/roach88/tsolve/internal/store"
	"github.com/roach88/tsolve/internal/testutil"
)

func loadBasics(t *testing.T) *compiler.Program {
	return testutil.LoadProgram(t, "basics")
}

func setupTestStore(t *testing.T) *store.Store {
	s, _ := testutil.OpenStore(t)
	return s
}

func newRunner(t *testing.T, prog *compiler.Program, opts ...Option) *Runner {
	t.Helper()
	r, err := New(prog, append([]Option{WithLogger(testutil.QuietLogger())}, opts...)...)
	require.NoError(t, err)
	return r
}

func TestSolve_Outcomes(t *testing.T) {
	r := newRunner(t, loadBasics(t))
	ctx := context.Background()

	tests := []struct {
		goal     string
		kind     string
		guidance string
		status   interp.Status
	}{
		{"numeric_default", ir.KindUnique, "", interp.StatusBound},
		{"param_default", ir.KindUnique, "", interp.StatusBound},
		{"closure_output", ir.KindUnique, "", interp.StatusBound},
		{"show_suggested", ir.KindAmbiguous, "suggested", interp.StatusDeferred},
		{"render_unknown", ir.KindAmbiguous, "unknown", interp.StatusDeferred},
		{"ord_custom", ir.KindNone, "", interp.StatusUnsatisfiable},
		{"super_eq", ir.KindUnique, "", interp.StatusBound},
		{"item_projection", ir.KindUnique, "", interp.StatusBound},
		{"counter_item", ir.KindUnique, "", interp.StatusBound},
		{"vec_show", ir.KindUnique, "", interp.StatusBound},
		{"conv_any", ir.KindAmbiguous, "unknown", interp.StatusDeferred},
		{"node_send", ir.KindUnique, "", interp.StatusBound},
		{"wf_vec", ir.KindUnique, "", interp.StatusBound},
	}
	for _, tt := range tests {
		t.Run(tt.goal, func(t *testing.T) {
			res, err := r.Solve(ctx, tt.goal)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, ir.SolutionKind(res.Solution), res.Solution.String())
			assert.Equal(t, tt.guidance, ir.GuidanceKind(res.Solution))
			assert.Equal(t, tt.status, res.Outcome.Status)
		})
	}
}

func TestSolve_BindsCallerVariables(t *testing.T) {
	r := newRunner(t, loadBasics(t))
	ctx := context.Background()

	res, err := r.Solve(ctx, "closure_output")
	require.NoError(t, err)
	require.Len(t, res.Values, 1)
	assert.Equal(t, "i32", res.Values[0].String())

	res, err = r.Solve(ctx, "item_projection")
	require.NoError(t, err)
	require.Len(t, res.Values, 1)
	assert.Equal(t, "u8", res.Values[0].String())

	res, err = r.Solve(ctx, "counter_item")
	require.NoError(t, err)
	assert.Empty(t, res.Values)
	require.Len(t, res.Outcome.Holes, 1)
	assert.Equal(t, "u32", res.Outcome.Holes[0].Ty.String())
}

func TestSolve_UnknownGoal(t *testing.T) {
	r := newRunner(t, loadBasics(t))
	_, err := r.Solve(context.Background(), "missing")
	assert.True(t, IsRunError(err, ErrCodeUnknownGoal))
}

func TestSolve_FuelBounded(t *testing.T) {
	r := newRunner(t, loadBasics(t), WithFuel(1))
	res, err := r.Solve(context.Background(), "vec_show")
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Stats.FuelUsed, 1)
	assert.NotEqual(t, ir.KindNone, ir.SolutionKind(res.Solution))
}

func TestRun_WithoutStore(t *testing.T) {
	prog := loadBasics(t)
	r := newRunner(t, prog, WithIDGenerator(store.NewFixedGenerator("s1")))

	sess, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	require.Len(t, sess.Results, len(prog.Goals))
	for i, res := range sess.Results {
		assert.Equal(t, prog.Goals[i].Name, res.Goal.Name)
		assert.Zero(t, res.EventID)
	}
}

func TestRun_LogsSession(t *testing.T) {
	s := setupTestStore(t)
	r := newRunner(t, loadBasics(t),
		WithStore(s),
		WithIDGenerator(store.NewFixedGenerator("s1")),
		WithFuel(500),
	)
	ctx := context.Background()

	sess, err := r.Run(ctx, "ord_custom", "numeric_default")
	require.NoError(t, err)
	require.Len(t, sess.Results, 2)

	logged, err := s.ReadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "basics", logged.Program)
	assert.Equal(t, 500, logged.Fuel)
	assert.Equal(t, Version, logged.EngineVersion)
	assert.Equal(t, int64(1), logged.Seq)

	events, err := s.ReadSessionEvents(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ord_custom", events[0].GoalName)
	assert.Equal(t, ir.KindNone, events[0].Kind)
	assert.Equal(t, "numeric_default", events[1].GoalName)
	assert.Equal(t, sess.Results[1].EventID, events[1].ID)
}

func TestRun_ContinuesStoreClock(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	prog := loadBasics(t)

	first := newRunner(t, prog, WithStore(s), WithIDGenerator(store.NewFixedGenerator("a")))
	_, err := first.Run(ctx, "wf_vec")
	require.NoError(t, err)

	second := newRunner(t, prog, WithStore(s), WithIDGenerator(store.NewFixedGenerator("b")))
	_, err = second.Run(ctx, "wf_vec")
	require.NoError(t, err)

	latest, err := s.LatestSession(ctx, "basics")
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)
	assert.Equal(t, int64(3), latest.Seq)
}

func TestRun_UnknownGoal(t *testing.T) {
	r := newRunner(t, loadBasics(t))
	_, err := r.Run(context.Background(), "numeric_default", "missing")
	assert.True(t, IsRunError(err, ErrCodeUnknownGoal))
}

func TestNew_RegistryFault(t *testing.T) {
	prog := loadBasics(t)
	prog.Traits = append(prog.Traits, prog.Traits[0])

	_, err := New(prog)
	assert.Error(t, err)
}

func TestReplay(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	prog := loadBasics(t)

	r := newRunner(t, prog, WithStore(s), WithIDGenerator(store.NewFixedGenerator("s1")))
	_, err := r.Run(ctx)
	require.NoError(t, err)

	report, err := r.Replay(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, report.OK(), "drifts: %+v", report.Drifts)
	assert.Equal(t, len(prog.Goals), report.Checked)
}

func TestReplay_DetectsChangedProgram(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	original, err := compiler.LoadString("replay", `
trait: Show: {}
type: Widget: {}
impl: show_widget: {head: "Widget: Show"}
goal: {
	widget: {query: "Widget: Show"}
	gone: {query: "WF(Widget)"}
}
`)
	require.NoError(t, err)
	r := newRunner(t, original, WithStore(s), WithIDGenerator(store.NewFixedGenerator("s1")))
	_, err = r.Run(ctx)
	require.NoError(t, err)

	changed, err := compiler.LoadString("replay", `
trait: Show: {}
type: Widget: {}
goal: widget: {query: "Widget: Show"}
`)
	require.NoError(t, err)
	replayer := newRunner(t, changed, WithStore(s))

	report, err := replayer.Replay(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	require.Len(t, report.Drifts, 2)

	assert.Equal(t, "widget", report.Drifts[0].GoalName)
	assert.Equal(t, ir.NoSolution{}.String(), report.Drifts[0].Got)
	assert.Equal(t, "gone", report.Drifts[1].GoalName)
	assert.Contains(t, report.Drifts[1].Err, string(ErrCodeUnknownGoal))
}

func TestReplay_NoStore(t *testing.T) {
	r := newRunner(t, loadBasics(t))
	_, err := r.Replay(context.Background(), "s1")
	assert.True(t, IsRunError(err, ErrCodeNoStore))
}
