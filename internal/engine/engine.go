package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tsolve/internal/compiler"
	"github.com/roach88/tsolve/internal/goal"
	"github.com/roach88/tsolve/internal/interp"
	"github.com/roach88/tsolve/internal/ir"
	"github.com/roach88/tsolve/internal/registry"
	"github.com/roach88/tsolve/internal/solver"
	"github.com/roach88/tsolve/internal/store"
)

// Version is recorded on every logged session.
const Version = "tsolve/0.1"

// Runner solves the goals of one program.
type Runner struct {
	program *compiler.Program
	view    *registry.View
	solver  *solver.Engine
	store   *store.Store
	clock   *store.Clock
	ids     store.IDGenerator
	logger  *slog.Logger
	fuel    int
	version string
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore logs sessions and solve events to s.
func WithStore(s *store.Store) Option {
	return func(r *Runner) {
		r.store = s
	}
}

// WithClock stamps logged records from clock. Without it, the first
// logged session starts a clock after the store's last seq.
func WithClock(clock *store.Clock) Option {
	return func(r *Runner) {
		r.clock = clock
	}
}

// WithIDGenerator sets the session id source. Default: UUIDv7.
func WithIDGenerator(ids store.IDGenerator) Option {
	return func(r *Runner) {
		r.ids = ids
	}
}

// WithFuel sets the solver budget per goal.
//
// Default: solver.DefaultFuel.
func WithFuel(fuel int) Option {
	return func(r *Runner) {
		r.fuel = fuel
	}
}

// WithLogger sets the logger for the runner and its solver.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithEngineVersion overrides the version recorded on sessions.
func WithEngineVersion(version string) Option {
	return func(r *Runner) {
		r.version = version
	}
}

// New builds the program's registry and a solver over its snapshot.
// A registry fault in the program is returned as an error.
func New(program *compiler.Program, opts ...Option) (*Runner, error) {
	r := &Runner{
		program: program,
		ids:     store.UUIDv7Generator{},
		logger:  slog.Default(),
		fuel:    solver.DefaultFuel,
		version: Version,
	}
	for _, opt := range opts {
		opt(r)
	}

	reg, err := program.Registry()
	if err != nil {
		return nil, err
	}
	r.view = reg.Snapshot()
	r.solver = solver.New(r.view, solver.WithFuel(r.fuel), solver.WithLogger(r.logger))
	return r, nil
}

// Program returns the program being solved.
func (r *Runner) Program() *compiler.Program { return r.program }

// View returns the registry snapshot goals are solved against.
func (r *Runner) View() *registry.View { return r.view }

// Result is one solved goal.
type Result struct {
	Goal       compiler.GoalDecl
	Obligation ir.InEnvironment[ir.Goal]
	Vars       goal.SolutionVariables
	Solution   ir.Solution
	Stats      solver.Stats
	Outcome    interp.Outcome

	// Values holds each caller variable after Apply, resolved through the
	// goal's inference table, in caller index order.
	Values []ir.Ty

	// EventID is the solve log row id, 0 when nothing was logged.
	EventID int64
}

// Session is the result of Run.
type Session struct {
	ID      string
	Results []Result
}

// Solve runs the named goal without logging it.
func (r *Runner) Solve(ctx context.Context, name string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	decl, ok := r.program.Goal(name)
	if !ok {
		return Result{}, &RunError{Code: ErrCodeUnknownGoal, Goal: name, Message: "goal not declared"}
	}
	return r.solveDecl(decl)
}

func (r *Runner) solveDecl(decl compiler.GoalDecl) (Result, error) {
	environment, err := r.program.Environment(r.view, decl.Context)
	if err != nil {
		return Result{}, &RunError{Code: ErrCodeEnvironment, Goal: decl.Name, Message: "build environment", Err: err}
	}
	obl, vars, err := goal.Encode(decl.Site, environment)
	if err != nil {
		return Result{}, &RunError{Code: ErrCodeEncode, Goal: decl.Name, Message: "encode site", Err: err}
	}

	sol, stats := r.solver.SolveWithStats(obl)

	table := interp.NewTable()
	for _, v := range decl.Vars {
		table.NewVar(v.Kind)
	}
	outcome, err := interp.Apply(sol, vars, table)
	if err != nil {
		return Result{}, &RunError{Code: ErrCodeApply, Goal: decl.Name, Message: "apply solution", Err: err}
	}
	values := make([]ir.Ty, len(decl.Vars))
	for i, v := range decl.Vars {
		values[i] = table.Resolve(ir.TyInfer{Index: i, Kind: v.Kind})
	}

	r.logger.Info("goal solved",
		"goal", decl.Name,
		"obligation", obl.Goal.String(),
		"solution", sol.String(),
		"outcome", outcome.Status.String(),
		"fuel_used", stats.FuelUsed,
	)
	if stats.Truncated {
		r.logger.Warn("search truncated", "goal", decl.Name, "fuel", r.fuel)
	}

	return Result{
		Goal:       decl,
		Obligation: obl,
		Vars:       vars,
		Solution:   sol,
		Stats:      stats,
		Outcome:    outcome,
		Values:     values,
	}, nil
}

// Run solves the named goals, or every goal in declaration order when
// names is empty. With a store, the session and one event per goal are
// logged; an obligation already logged in the session keeps its first
// event.
func (r *Runner) Run(ctx context.Context, names ...string) (Session, error) {
	decls, err := r.selectGoals(names)
	if err != nil {
		return Session{}, err
	}

	sess := Session{ID: r.ids.Generate()}
	if r.store != nil {
		if err := r.startSession(ctx, sess.ID); err != nil {
			return Session{}, err
		}
	}

	for _, decl := range decls {
		if err := ctx.Err(); err != nil {
			return sess, err
		}
		res, err := r.solveDecl(decl)
		if err != nil {
			return sess, err
		}
		if r.store != nil {
			id, err := r.logResult(ctx, sess.ID, res)
			if err != nil {
				return sess, err
			}
			res.EventID = id
		}
		sess.Results = append(sess.Results, res)
	}
	return sess, nil
}

func (r *Runner) selectGoals(names []string) ([]compiler.GoalDecl, error) {
	if len(names) == 0 {
		return r.program.Goals, nil
	}
	decls := make([]compiler.GoalDecl, 0, len(names))
	for _, name := range names {
		decl, ok := r.program.Goal(name)
		if !ok {
			return nil, &RunError{Code: ErrCodeUnknownGoal, Goal: name, Message: "goal not declared"}
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

func (r *Runner) startSession(ctx context.Context, id string) error {
	if r.clock == nil {
		last, err := r.store.LastSeq(ctx)
		if err != nil {
			return err
		}
		r.clock = store.NewClockAt(last)
	}
	return r.store.WriteSession(ctx, store.Session{
		ID:            id,
		Program:       r.program.Name,
		Fuel:          r.fuel,
		EngineVersion: r.version,
		Seq:           r.clock.Next(),
	})
}

func (r *Runner) logResult(ctx context.Context, sessionID string, res Result) (int64, error) {
	ev, err := store.NewSolveEvent(res.Goal.Name, res.Obligation, res.Solution, res.Stats.FuelUsed, res.Stats.Candidates)
	if err != nil {
		return 0, err
	}
	ev.SessionID = sessionID
	ev.Seq = r.clock.Next()

	id, inserted, err := r.store.WriteSolveEvent(ctx, ev)
	if err != nil {
		return 0, fmt.Errorf("log goal %s: %w", res.Goal.Name, err)
	}
	if !inserted {
		r.logger.Debug("obligation already logged",
			"goal", res.Goal.Name,
			"session", sessionID,
			"event_id", id,
		)
	}
	return id, nil
}
