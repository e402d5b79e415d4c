package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/tsolve/internal/ir"
	"github.com/roach88/tsolve/internal/queryir"
	"github.com/roach88/tsolve/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Filter   queryir.TraceFilter
	Event    int64 // show one event by id
	Sessions bool  // list sessions instead of events
}

// TraceResult holds the matching solve events.
type TraceResult struct {
	Events []store.SolveEvent `json:"events"`
	Stats  TraceStats         `json:"stats"`
}

// TraceStats summarizes the matching events.
type TraceStats struct {
	Total     int `json:"total"`
	Unique    int `json:"unique"`
	Ambiguous int `json:"ambiguous"`
	None      int `json:"none"`
	FuelUsed  int `json:"fuel_used"`
}

// SessionsResult lists logged sessions.
type SessionsResult struct {
	Sessions []store.Session `json:"sessions"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Query the solve log",
		Long: `List logged solve events in log order.

Filters combine with AND. --kind may be repeated to match any of several
solution kinds.

--event shows a single event with its full goal key and canonical goal
and solution JSON. --sessions lists the logged sessions instead of
events, restricted to --program when given.

Examples:
  tsolve trace --db ./solve.db
  tsolve trace --db ./solve.db --session 0192... --kind ambiguous
  tsolve trace --db ./solve.db --program basics --trait Show --format json
  tsolve trace --db ./solve.db --event 7
  tsolve trace --db ./solve.db --sessions`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	f := &opts.Filter
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite solve log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&f.Session, "session", "", "filter by session id")
	cmd.Flags().StringVar(&f.Program, "program", "", "filter by program name")
	cmd.Flags().StringVar(&f.Goal, "goal", "", "filter by goal name")
	cmd.Flags().StringVar(&f.Trait, "trait", "", "filter by trait")
	cmd.Flags().StringArrayVar(&f.Kinds, "kind", nil, "filter by solution kind: unique, ambiguous or none (repeatable)")
	cmd.Flags().StringVar(&f.Guidance, "guidance", "", "filter by guidance: definite, suggested or unknown")
	cmd.Flags().Int64Var(&f.MinFuel, "min-fuel", 0, "only events that used at least this much fuel")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum number of events (0 = all)")
	cmd.Flags().Int64Var(&opts.Event, "event", 0, "show the event with this id")
	cmd.Flags().BoolVar(&opts.Sessions, "sessions", false, "list sessions")
	cmd.MarkFlagsMutuallyExclusive("event", "sessions")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx, stop := signalContext(cmd)
	defer stop()

	for _, k := range opts.Filter.Kinds {
		if k != ir.KindUnique && k != ir.KindAmbiguous && k != ir.KindNone {
			msg := fmt.Sprintf("invalid kind %q: must be unique, ambiguous or none", k)
			_ = formatter.Error(ErrCodeGeneric, msg, nil)
			return NewExitError(ExitCommandError, msg)
		}
	}

	if opts.Event < 0 {
		msg := fmt.Sprintf("invalid event id %d", opts.Event)
		_ = formatter.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	st, err := openExistingStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	switch {
	case opts.Event > 0:
		return showEvent(ctx, formatter, st, opts.Event)
	case opts.Sessions:
		return listSessions(ctx, formatter, st, opts.Filter.Program)
	}

	query := opts.Filter.Query()
	if v := queryir.Validate(query); !v.Valid {
		_ = formatter.Error(ErrCodeGeneric, "invalid trace filter", v.Errors)
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid trace filter: %v", v.Errors))
	}
	events, err := st.QueryEvents(ctx, query)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to query solve log", err)
	}

	result := TraceResult{Events: events, Stats: traceStats(events)}
	if result.Events == nil {
		result.Events = []store.SolveEvent{}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputTraceText(formatter, result)
}

func showEvent(ctx context.Context, formatter *OutputFormatter, st *store.Store, id int64) error {
	ev, err := st.ReadSolveEvent(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		msg := fmt.Sprintf("solve event %d not found", id)
		_ = formatter.Error(ErrCodeDatabase, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read solve log", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(ev)
	}
	w := formatter.Writer
	fmt.Fprintf(w, "Event %d (session %s, seq %d)\n", ev.ID, ev.SessionID, ev.Seq)
	fmt.Fprintf(w, "  goal:       %s\n", ev.GoalName)
	fmt.Fprintf(w, "  obligation: %s\n", ev.GoalText)
	fmt.Fprintf(w, "  key:        %s\n", ev.GoalKey)
	fmt.Fprintf(w, "  solution:   %s\n", ev.SolutionText)
	if ev.Guidance != "" {
		fmt.Fprintf(w, "  guidance:   %s\n", ev.Guidance)
	}
	fmt.Fprintf(w, "  fuel:       %d used, %d candidate(s)\n", ev.FuelUsed, ev.Candidates)
	if formatter.Verbose {
		fmt.Fprintf(w, "  goal json:     %s\n", ev.Goal)
		fmt.Fprintf(w, "  solution json: %s\n", ev.Solution)
	}
	return nil
}

func listSessions(ctx context.Context, formatter *OutputFormatter, st *store.Store, program string) error {
	all, err := st.ListSessions(ctx)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read solve log", err)
	}
	result := SessionsResult{Sessions: []store.Session{}}
	for _, sess := range all {
		if program == "" || sess.Program == program {
			result.Sessions = append(result.Sessions, sess)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	w := formatter.Writer
	if len(result.Sessions) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSESSION\tPROGRAM\tFUEL\tENGINE")
	for _, sess := range result.Sessions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", sess.Seq, sess.ID, sess.Program, sess.Fuel, sess.EngineVersion)
	}
	return tw.Flush()
}

func traceStats(events []store.SolveEvent) TraceStats {
	stats := TraceStats{Total: len(events)}
	for _, ev := range events {
		switch ev.Kind {
		case ir.KindUnique:
			stats.Unique++
		case ir.KindAmbiguous:
			stats.Ambiguous++
		case ir.KindNone:
			stats.None++
		}
		stats.FuelUsed += ev.FuelUsed
	}
	return stats
}

func outputTraceText(formatter *OutputFormatter, result TraceResult) error {
	w := formatter.Writer
	if len(result.Events) == 0 {
		fmt.Fprintln(w, "No solve events found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tGOAL\tOBLIGATION\tSOLUTION\tFUEL")
	for _, ev := range result.Events {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", ev.Seq, ev.GoalName, ev.GoalText, ev.SolutionText, ev.FuelUsed)
		if formatter.Verbose {
			fmt.Fprintf(tw, "\t\tevent %d, session %s\tkey %s\t\n", ev.ID, ev.SessionID, shortKey(ev.GoalKey))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := result.Stats
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d event(s): %d unique, %d ambiguous, %d none; %d fuel\n",
		s.Total, s.Unique, s.Ambiguous, s.None, s.FuelUsed)
	return nil
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
