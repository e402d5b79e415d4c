package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tsolve/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Program  string                     `json:"program"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <program-dir>",
		Short: "Validate a program without solving it",
		Long: `Validate a CUE program without solving any goal.

Checks declaration shapes and type syntax, name resolution, arities and
associated types, then registers every declaration. Supertrait cycles are
reported as warnings.

Exit codes:
  0 - Program is valid
  1 - Validation errors found
  2 - Command error (directory not found, CUE error, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	report, err := checkProgram(dir)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	formatter.VerboseLog("Validated program %s from %s", report.Program.Name, dir)

	if len(report.Errors) > 0 {
		return outputValidationErrors(formatter, report)
	}
	return outputValidateSuccess(formatter, report)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, report *programReport) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{
			Valid:    true,
			Program:  report.Program.Name,
			Warnings: report.Warnings,
		})
	}

	for _, w := range report.Warnings {
		formatter.Warn("%s", w.Message)
	}
	formatter.Pass("Program %s is valid", report.Program.Name)
	return nil
}

// outputValidationErrors outputs every validation error.
func outputValidationErrors(formatter *OutputFormatter, report *programReport) error {
	errs := report.Errors
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:    false,
			Program:  report.Program.Name,
			Errors:   errs,
			Warnings: report.Warnings,
		}
		if err := formatter.Failure(errs[0].Code, errs[0].Message, result); err != nil {
			return err
		}
		return exitErr
	}

	formatter.Fail("Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "%s\n  %s: %s\n\n", err.Field, err.Code, err.Message)
	}
	for _, w := range report.Warnings {
		formatter.Warn("%s", w.Message)
	}
	return exitErr
}
