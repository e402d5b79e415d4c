package solver

import (
	"log/slog"

	"github.com/roach88/tsolve/internal/ir"
	"github.com/roach88/tsolve/internal/registry"
)

// DefaultFuel is the default number of candidate attempts per solve.
const DefaultFuel = 2000

// Engine solves obligations against one registry snapshot.
//
// An Engine holds only configuration. Every Solve builds its own goal
// stack, fuel counter and cache, so one Engine may serve concurrent calls.
type Engine struct {
	view   *registry.View
	fuel   int
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFuel sets the search budget per solve.
//
// Default: 2000 candidate attempts (DefaultFuel).
func WithFuel(fuel int) Option {
	return func(e *Engine) {
		e.fuel = fuel
	}
}

// WithLogger sets the logger for search diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an Engine over a registry snapshot.
func New(view *registry.View, opts ...Option) *Engine {
	e := &Engine{
		view:   view,
		fuel:   DefaultFuel,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stats describes the work one solve did.
type Stats struct {
	FuelUsed   int  `json:"fuel_used"`
	Candidates int  `json:"candidates"`
	CacheHits  int  `json:"cache_hits"`
	CycleHits  int  `json:"cycle_hits"`
	MaxDepth   int  `json:"max_depth"`
	Truncated  bool `json:"truncated"`
}

// Solve decides obl. The goal is canonicalized first; the positions of a
// returned substitution follow ir.Canonicalize order, which for goals from
// goal.Encode is placeholder order.
//
// Solve never fails: NoSolution and Ambiguous are ordinary results, and a
// search that runs out of fuel degrades to Ambiguous.
func (e *Engine) Solve(obl ir.InEnvironment[ir.Goal]) ir.Solution {
	sol, _ := e.SolveWithStats(obl)
	return sol
}

// SolveWithStats is Solve that also reports search statistics.
func (e *Engine) SolveWithStats(obl ir.InEnvironment[ir.Goal]) (ir.Solution, Stats) {
	env := obl.Env
	if env == nil {
		env = ir.EmptyEnvironment()
	}
	s := &search{
		view:   e.view,
		env:    env,
		fuel:   NewFuel(e.fuel),
		stack:  newGoalStack(),
		cache:  make(map[string]ir.Solution),
		logger: e.logger,
	}

	canon, _ := ir.Canonicalize(obl.Goal)
	sol, _ := s.solve(canon)
	s.stats.FuelUsed = s.fuel.Used()

	e.logger.Debug("solved",
		"goal", canon.String(),
		"solution", sol.String(),
		"fuel_used", s.stats.FuelUsed,
		"candidates", s.stats.Candidates,
	)
	return sol, s.stats
}
