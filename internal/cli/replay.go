package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tsolve/internal/engine"
	"github.com/roach88/tsolve/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - latest session of the program by default
}

// ReplayResult holds the replay result for one session.
type ReplayResult struct {
	Session       string        `json:"session"`
	Program       string        `json:"program"`
	Fuel          int           `json:"fuel"`
	EngineVersion string        `json:"engine_version"`
	Checked       int           `json:"checked"`
	Drifts        []store.Drift `json:"drifts"`
	Deterministic bool          `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <program-dir>",
		Short: "Re-solve a logged session and report drift",
		Long: `Re-solve every goal of a logged session against the program and
compare each solution with the logged one.

The session's fuel budget is reused. A goal that is gone, or that now
encodes to a different obligation, is reported as drift.

Exit codes:
  0 - Every solution replayed unchanged
  1 - Drift detected
  2 - Command error (database not found, unknown session, etc.)

Examples:
  tsolve replay ./program --db ./solve.db
  tsolve replay ./program --db ./solve.db --session 0192...
  tsolve replay ./program --db ./solve.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite solve log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to replay (default: latest for the program)")

	return cmd
}

func runReplay(opts *ReplayOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx, stop := signalContext(cmd)
	defer stop()

	prog, err := loadProgram(formatter, dir)
	if err != nil {
		return err
	}

	st, err := openExistingStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var sess store.Session
	if opts.Session != "" {
		sess, err = st.ReadSession(ctx, opts.Session)
	} else {
		sess, err = st.LatestSession(ctx, prog.Name)
	}
	if errors.Is(err, store.ErrNotFound) {
		msg := fmt.Sprintf("no session logged for program %s", prog.Name)
		if opts.Session != "" {
			msg = fmt.Sprintf("session %s not found", opts.Session)
		}
		_ = formatter.Error(ErrCodeSession, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}
	if sess.Program != prog.Name {
		msg := fmt.Sprintf("session %s was logged for program %s, not %s", sess.ID, sess.Program, prog.Name)
		_ = formatter.Error(ErrCodeSession, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	formatter.VerboseLog("Replaying session %s (fuel %d, %s)", sess.ID, sess.Fuel, sess.EngineVersion)

	runOpts := []engine.Option{
		engine.WithStore(st),
		engine.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())),
	}
	if sess.Fuel > 0 {
		runOpts = append(runOpts, engine.WithFuel(sess.Fuel))
	}
	runner, err := engine.New(prog, runOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeSolve, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to build solver", err)
	}

	report, err := runner.Replay(ctx, sess.ID)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	result := ReplayResult{
		Session:       sess.ID,
		Program:       sess.Program,
		Fuel:          sess.Fuel,
		EngineVersion: sess.EngineVersion,
		Checked:       report.Checked,
		Drifts:        report.Drifts,
		Deterministic: report.OK(),
	}
	if result.Drifts == nil {
		result.Drifts = []store.Drift{}
	}

	if formatter.Format == "json" {
		if !result.Deterministic {
			if err := formatter.Failure(ErrCodeDrift, driftMessage(result), result); err != nil {
				return err
			}
			return NewExitError(ExitFailure, driftMessage(result))
		}
		return formatter.Success(result)
	}
	return outputReplayText(formatter, result)
}

// openExistingStore opens a solve log that must already exist.
func openExistingStore(formatter *OutputFormatter, path string) (*store.Store, error) {
	if !fileExists(path) {
		msg := fmt.Sprintf("database not found: %s", path)
		_ = formatter.Error(ErrCodeDatabase, msg, nil)
		return nil, NewExitError(ExitCommandError, msg)
	}
	st, err := store.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func driftMessage(r ReplayResult) string {
	return fmt.Sprintf("%d of %d goal(s) drifted", len(r.Drifts), r.Checked)
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer
	if result.Deterministic {
		formatter.Pass("Session %s: %d goal(s) replayed unchanged", result.Session, result.Checked)
		return nil
	}

	formatter.Fail("Session %s: %s", result.Session, driftMessage(result))
	fmt.Fprintln(w)
	for _, d := range result.Drifts {
		fmt.Fprintf(w, "  %s\n", d.GoalName)
		fmt.Fprintf(w, "    logged:   %s\n", d.Want)
		if d.Err != "" {
			fmt.Fprintf(w, "    error:    %s\n", d.Err)
		} else {
			fmt.Fprintf(w, "    replayed: %s\n", d.Got)
		}
	}
	return NewExitError(ExitFailure, driftMessage(result))
}
