package cli

import (
	"errors"
	"fmt"

	"github.com/roach88/tsolve/internal/compiler"
)

// programReport is what loading a program directory produced.
type programReport struct {
	Program  *compiler.Program
	Errors   []compiler.ValidationError
	Warnings []compiler.CycleWarning
}

// checkProgram loads dir and runs every static check: validation, then
// registration when validation passed, then the supertrait cycle scan.
// The error return is for programs that could not be loaded at all.
func checkProgram(dir string) (*programReport, error) {
	prog, err := compiler.LoadDir(dir)
	if err != nil {
		return nil, err
	}

	report := &programReport{Program: prog, Errors: compiler.Validate(prog)}
	if len(report.Errors) == 0 {
		if _, err := prog.Registry(); err != nil {
			report.Errors = append(report.Errors, compiler.ValidationError{
				Field:   "registry",
				Message: err.Error(),
				Code:    compiler.ErrCodeRegistry,
			})
		}
	}
	report.Warnings = compiler.AnalyzeCycles(prog)
	return report, nil
}

// loadProgram loads and checks the program in dir for commands that go on
// to solve it. Failures are reported through f and returned as an
// ExitError.
func loadProgram(f *OutputFormatter, dir string) (*compiler.Program, error) {
	report, err := checkProgram(dir)
	if err != nil {
		return nil, reportLoadError(f, err)
	}
	f.VerboseLog("Loaded program %s: %d trait(s), %d impl(s), %d goal(s)",
		report.Program.Name, len(report.Program.Traits), len(report.Program.Impls), len(report.Program.Goals))
	for _, w := range report.Warnings {
		f.VerboseLog("warning: %s", w.Message)
	}
	if len(report.Errors) > 0 {
		return nil, outputValidationErrors(f, report)
	}
	return report.Program, nil
}

// reportLoadError prints a load failure and converts it to an exit error.
func reportLoadError(f *OutputFormatter, err error) error {
	code, message := ErrCodeGeneric, err.Error()
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		code, message = loadErr.Code, loadErr.Error()
	}
	_ = f.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
