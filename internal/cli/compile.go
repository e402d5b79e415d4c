package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tsolve/internal/compiler"
	"github.com/roach88/tsolve/internal/goal"
	"github.com/roach88/tsolve/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledGoal is a goal with its encoded obligation.
type CompiledGoal struct {
	Name       string `json:"name"`
	Query      string `json:"query"`
	Context    string `json:"context,omitempty"`
	Obligation string `json:"obligation"`
	Key        string `json:"key"`
}

// CompilationResult is the printed form of a compiled program.
type CompilationResult struct {
	Program  string         `json:"program"`
	Traits   []string       `json:"traits"`
	Types    []string       `json:"types"`
	Impls    []string       `json:"impls"`
	Closures []string       `json:"closures"`
	Contexts []string       `json:"contexts"`
	Goals    []CompiledGoal `json:"goals"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <program-dir>",
		Short: "Compile a program and print its declarations and obligations",
		Long: `Compile a CUE program and print every declaration along with the
obligation each goal encodes to.

With --output the result is written as canonical JSON, byte-identical
across runs for the same program.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	prog, err := loadProgram(formatter, dir)
	if err != nil {
		return err
	}

	result, err := compileResult(prog)
	if err != nil {
		_ = formatter.Error(ErrCodeSolve, err.Error(), nil)
		return WrapExitError(ExitFailure, "compile failed", err)
	}

	if opts.Output != "" {
		data, err := ir.MarshalCanonical(result.toIR())
		if err == nil {
			err = os.WriteFile(opts.Output, data, 0o644)
		}
		if err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
		formatter.VerboseLog("Wrote %s", opts.Output)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputCompileText(formatter, result, opts.Output)
}

// compileResult encodes every goal of prog against its registry. Keys
// match the goal_key column of the solve log.
func compileResult(prog *compiler.Program) (*CompilationResult, error) {
	reg, err := prog.Registry()
	if err != nil {
		return nil, err
	}
	view := reg.Snapshot()

	result := &CompilationResult{
		Program:  prog.Name,
		Traits:   []string{},
		Types:    []string{},
		Impls:    []string{},
		Closures: []string{},
		Contexts: []string{},
		Goals:    []CompiledGoal{},
	}
	for _, t := range prog.Traits {
		result.Traits = append(result.Traits, t.Name)
	}
	for _, t := range prog.Types {
		result.Types = append(result.Types, t.Name)
	}
	for _, im := range prog.Impls {
		result.Impls = append(result.Impls, fmt.Sprintf("%s = %s", im.Name, im.Impl))
	}
	for _, c := range prog.Closures {
		result.Closures = append(result.Closures, fmt.Sprintf("%s: %s", ir.TyClosure{ID: c.ID}, c.Kind))
	}
	for _, c := range prog.Contexts {
		result.Contexts = append(result.Contexts, c.Name)
	}

	for _, decl := range prog.Goals {
		environment, err := prog.Environment(view, decl.Context)
		if err != nil {
			return nil, fmt.Errorf("goal %s: %w", decl.Name, err)
		}
		obl, _, err := goal.Encode(decl.Site, environment)
		if err != nil {
			return nil, fmt.Errorf("goal %s: %w", decl.Name, err)
		}
		canon, _ := ir.Canonicalize(obl.Goal)
		key, err := ir.ObligationKey(ir.InEnvironment[ir.Goal]{Env: obl.Env, Goal: canon})
		if err != nil {
			return nil, fmt.Errorf("goal %s: %w", decl.Name, err)
		}
		result.Goals = append(result.Goals, CompiledGoal{
			Name:       decl.Name,
			Query:      decl.Query,
			Context:    decl.Context,
			Obligation: obl.Goal.String(),
			Key:        key,
		})
	}
	return result, nil
}

func (r *CompilationResult) toIR() ir.IRObject {
	strs := func(ss []string) ir.IRArray {
		arr := make(ir.IRArray, len(ss))
		for i, s := range ss {
			arr[i] = ir.IRString(s)
		}
		return arr
	}
	goals := make(ir.IRArray, len(r.Goals))
	for i, g := range r.Goals {
		obj := ir.IRObject{
			"name":       ir.IRString(g.Name),
			"query":      ir.IRString(g.Query),
			"obligation": ir.IRString(g.Obligation),
			"key":        ir.IRString(g.Key),
		}
		if g.Context != "" {
			obj["context"] = ir.IRString(g.Context)
		}
		goals[i] = obj
	}
	return ir.IRObject{
		"program":  ir.IRString(r.Program),
		"traits":   strs(r.Traits),
		"types":    strs(r.Types),
		"impls":    strs(r.Impls),
		"closures": strs(r.Closures),
		"contexts": strs(r.Contexts),
		"goals":    goals,
	}
}

func outputCompileText(formatter *OutputFormatter, result *CompilationResult, output string) error {
	w := formatter.Writer
	formatter.Pass("Compiled program %s", result.Program)
	fmt.Fprintf(w, "  Traits:   %d\n", len(result.Traits))
	fmt.Fprintf(w, "  Types:    %d\n", len(result.Types))
	fmt.Fprintf(w, "  Impls:    %d\n", len(result.Impls))
	fmt.Fprintf(w, "  Closures: %d\n", len(result.Closures))
	fmt.Fprintf(w, "  Contexts: %d\n", len(result.Contexts))
	fmt.Fprintf(w, "  Goals:    %d\n", len(result.Goals))

	if formatter.Verbose {
		fmt.Fprintln(w)
		for _, im := range result.Impls {
			fmt.Fprintf(w, "  %s\n", im)
		}
		for _, g := range result.Goals {
			fmt.Fprintf(w, "  goal %s: %s\n", g.Name, g.Obligation)
		}
	}
	if output != "" {
		fmt.Fprintf(w, "\nOutput written to: %s\n", output)
	}
	return nil
}
