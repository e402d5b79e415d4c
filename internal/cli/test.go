package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tsolve/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// Golden comparison states.
const (
	GoldenMatch    = "match"
	GoldenMismatch = "mismatch"
	GoldenUpdated  = "updated"
	GoldenMissing  = "missing"
)

// ScenarioReport holds the result of a single scenario file.
type ScenarioReport struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioReport `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios>",
		Short: "Run scenario files against their programs",
		Long: `Run YAML scenario files. Each scenario names a program, the goals to
solve with their expected outcomes, and assertions over the trace and
the solve log.

A scenario's trace is compared with golden/<file>.golden next to the
scenario file when that golden file exists. --update rewrites it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  tsolve test ./scenarios
  tsolve test ./scenarios --filter "proj*"
  tsolve test ./scenarios --update
  tsolve test ./scenarios/closure_output.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")

	return cmd
}

func runTests(opts *TestOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx, stop := signalContext(cmd)
	defer stop()

	files, err := harness.FindScenarios(path)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	files, err = filterScenarios(files, opts.Filter)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	suite := harness.RunFiles(ctx, files)
	result := TestResult{Scenarios: make([]ScenarioReport, 0, len(files)), Total: suite.Total}

	ran := make(map[string]bool, len(suite.Results))
	for _, sr := range suite.Results {
		ran[sr.Path] = true
		report := ScenarioReport{
			Name:   sr.Name,
			Path:   sr.Path,
			Pass:   sr.Result.Pass,
			Errors: sr.Result.Errors,
		}
		if err := checkGolden(&report, sr.Result, opts.Update); err != nil {
			report.Pass = false
			report.Errors = append(report.Errors, err.Error())
		}
		formatter.VerboseLog("%s: pass=%t golden=%s", sr.Path, report.Pass, report.Golden)
		result.add(report)
	}
	for _, f := range suite.Failures {
		if ran[f.Path] {
			continue
		}
		result.add(ScenarioReport{Name: f.Name, Path: f.Path, Errors: []string{f.Error}})
	}

	if formatter.Format == "json" {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter, result)
}

func (r *TestResult) add(report ScenarioReport) {
	r.Scenarios = append(r.Scenarios, report)
	if report.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

// filterScenarios keeps the files whose base name matches pattern.
func filterScenarios(files []string, pattern string) ([]string, error) {
	if pattern == "" {
		return files, nil
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("bad filter pattern %q: %w", pattern, err)
	}
	var kept []string
	for _, f := range files {
		if ok, _ := filepath.Match(pattern, filepath.Base(f)); ok {
			kept = append(kept, f)
		}
	}
	return kept, nil
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// checkGolden compares the scenario's snapshot with its golden file, or
// rewrites the golden file when update is set.
func checkGolden(report *ScenarioReport, result *harness.Result, update bool) error {
	data, err := harness.Snapshot(report.Name, result)
	if err != nil {
		return fmt.Errorf("failed to snapshot trace: %w", err)
	}
	path := goldenFilePath(report.Path)

	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write golden file: %w", err)
		}
		report.Golden = GoldenUpdated
		return nil
	}

	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		report.Golden = GoldenMissing
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(want), data) {
		report.Golden = GoldenMismatch
		return fmt.Errorf("trace differs from %s (run with --update to accept)", path)
	}
	report.Golden = GoldenMatch
	return nil
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(formatter *OutputFormatter, result TestResult) error {
	if result.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
		if err := formatter.Failure(ErrCodeTestFailed, msg, result); err != nil {
			return err
		}
		// Test failures = exit code 1
		return NewExitError(ExitFailure, msg)
	}
	return formatter.Success(result)
}

// outputTestText outputs the test result as text.
func outputTestText(formatter *OutputFormatter, result TestResult) error {
	w := formatter.Writer
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	for _, s := range result.Scenarios {
		name := s.Name
		if name == "" {
			name = s.Path
		}
		if s.Pass {
			formatter.Pass("%s", name)
			continue
		}
		formatter.Fail("%s", name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}
