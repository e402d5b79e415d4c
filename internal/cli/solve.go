package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/tsolve/internal/engine"
	"github.com/roach88/tsolve/internal/ir"
	"github.com/roach88/tsolve/internal/store"
)

// SolveOptions holds flags for the solve command.
type SolveOptions struct {
	*RootOptions
	Goals    []string
	Fuel     int
	Database string
	Session  string // fixed session id; generated when empty
}

// GoalResult is one solved goal as printed.
type GoalResult struct {
	Name       string            `json:"name"`
	Query      string            `json:"query"`
	Obligation string            `json:"obligation"`
	Solution   string            `json:"solution"`
	Kind       string            `json:"kind"`
	Guidance   string            `json:"guidance,omitempty"`
	Status     string            `json:"status"`
	Bindings   map[string]string `json:"bindings,omitempty"`
	Holes      map[string]string `json:"holes,omitempty"`
	FuelUsed   int               `json:"fuel_used"`
	Truncated  bool              `json:"truncated,omitempty"`
	EventID    int64             `json:"event_id,omitempty"`
}

// SolveResult is the output of the solve command.
type SolveResult struct {
	Program string       `json:"program"`
	Session string       `json:"session"`
	Logged  bool         `json:"logged"`
	Goals   []GoalResult `json:"goals"`
}

// NewSolveCommand creates the solve command.
func NewSolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "solve <program-dir>",
		Short: "Solve the goals of a program",
		Long: `Solve the goals declared by a program and print each solution.

Goals are solved in declaration order, or in the order given by --goal.
With --db the session and every solution are appended to the solve log
(created if it does not exist) for later replay and tracing.

Example:
  tsolve solve ./program
  tsolve solve ./program --goal vec_show --goal closure_output
  tsolve solve ./program --db ./solve.db --fuel 500`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Goals, "goal", "g", nil, "goal to solve (repeatable, default all)")
	cmd.Flags().IntVar(&opts.Fuel, "fuel", 0, "candidate attempts per goal (default 2000)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite solve log")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id to log under")

	return cmd
}

func runSolve(opts *SolveOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if opts.Fuel < 0 {
		return NewExitError(ExitCommandError, "--fuel must not be negative")
	}

	prog, err := loadProgram(formatter, dir)
	if err != nil {
		return err
	}

	runOpts := []engine.Option{engine.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr()))}
	if opts.Fuel > 0 {
		runOpts = append(runOpts, engine.WithFuel(opts.Fuel))
	}
	if opts.Session != "" {
		runOpts = append(runOpts, engine.WithIDGenerator(store.NewFixedGenerator(opts.Session)))
	}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
		runOpts = append(runOpts, engine.WithStore(st))
	}

	runner, err := engine.New(prog, runOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeSolve, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to build solver", err)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	sess, err := runner.Run(ctx, opts.Goals...)
	if err != nil {
		code := ExitFailure
		if engine.IsRunError(err, engine.ErrCodeUnknownGoal) {
			code = ExitCommandError
		}
		_ = formatter.Error(ErrCodeSolve, err.Error(), nil)
		return WrapExitError(code, "solve failed", err)
	}

	result := SolveResult{
		Program: prog.Name,
		Session: sess.ID,
		Logged:  opts.Database != "",
		Goals:   make([]GoalResult, 0, len(sess.Results)),
	}
	for _, res := range sess.Results {
		result.Goals = append(result.Goals, goalResult(res))
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputSolveText(formatter, result)
}

// signalContext returns the command context, cancelled on SIGINT/SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func goalResult(res engine.Result) GoalResult {
	gr := GoalResult{
		Name:       res.Goal.Name,
		Query:      res.Goal.Query,
		Obligation: res.Obligation.Goal.String(),
		Solution:   res.Solution.String(),
		Kind:       ir.SolutionKind(res.Solution),
		Guidance:   ir.GuidanceKind(res.Solution),
		Status:     res.Outcome.Status.String(),
		FuelUsed:   res.Stats.FuelUsed,
		Truncated:  res.Stats.Truncated,
		EventID:    res.EventID,
	}
	if len(res.Goal.Vars) > 0 {
		gr.Bindings = make(map[string]string, len(res.Goal.Vars))
		for i, v := range res.Goal.Vars {
			gr.Bindings[v.Name] = res.Values[i].String()
		}
	}
	if len(res.Outcome.Holes) > 0 {
		gr.Holes = make(map[string]string, len(res.Outcome.Holes))
		for _, h := range res.Outcome.Holes {
			gr.Holes[h.Path] = h.Ty.String()
		}
	}
	return gr
}

func outputSolveText(formatter *OutputFormatter, result SolveResult) error {
	w := formatter.Writer
	for _, g := range result.Goals {
		line := fmt.Sprintf("%s: %s => %s", g.Name, g.Obligation, g.Solution)
		switch g.Kind {
		case ir.KindUnique:
			formatter.Pass("%s", line)
		case ir.KindAmbiguous:
			formatter.Warn("%s", line)
		default:
			formatter.Fail("%s", line)
		}
		for _, name := range sortedKeys(g.Bindings) {
			fmt.Fprintf(w, "    ?%s = %s\n", name, g.Bindings[name])
		}
		for _, path := range sortedKeys(g.Holes) {
			fmt.Fprintf(w, "    _ at %s = %s\n", path, g.Holes[path])
		}
		if formatter.Verbose {
			fmt.Fprintln(w, formatter.paint(colorDim, fmt.Sprintf("    %s, fuel %d", g.Status, g.FuelUsed)))
		}
		if g.Truncated {
			fmt.Fprintln(w, "    search truncated: fuel exhausted")
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d goal(s) solved", len(result.Goals))
	if result.Logged {
		fmt.Fprintf(w, ", logged as session %s", result.Session)
	}
	fmt.Fprintln(w)
	return nil
}
