package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tsolve/internal/interp"
	"github.com/roach88/tsolve/internal/ir"
)

// Scenario is a conformance scenario: goals of one program with their
// expected solutions, plus assertions over the resulting trace and log.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the CUE program directory, relative to the scenario file.
	Program string `yaml:"program"`

	// Fuel overrides the solver budget per goal. Zero keeps the default.
	Fuel int `yaml:"fuel,omitempty"`

	// Session is a fixed session id for deterministic logs.
	// Defaults to "scenario-" + Name.
	Session string `yaml:"session,omitempty"`

	// Goals are solved in order.
	Goals []GoalStep `yaml:"goals"`

	// Assertions validate the final trace and solve log.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// GoalStep solves one named goal of the program.
type GoalStep struct {
	Goal   string        `yaml:"goal"`
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected solution. Only set fields are checked.
type ExpectClause struct {
	// Kind is unique, ambiguous or none.
	Kind string `yaml:"kind"`

	// Guidance is definite, suggested or unknown for ambiguous solutions.
	Guidance string `yaml:"guidance,omitempty"`

	// Solution is the exact solution text, e.g. "Unique[?0 := i32]".
	Solution string `yaml:"solution,omitempty"`

	// Status is the interpreter outcome: bound, hinted, deferred,
	// unsatisfiable or conflict.
	Status string `yaml:"status,omitempty"`

	// Bindings maps caller variable names to their type after the
	// solution is applied. Subset match.
	Bindings map[string]string `yaml:"bindings,omitempty"`

	// Holes maps site paths to the type each hole resolved to, "_" for
	// undetermined. Subset match.
	Holes map[string]string `yaml:"holes,omitempty"`
}

// Assertion validates the trace or the solve log.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_state.
	Type string `yaml:"type"`

	// Goal names a goal (trace_contains, final_state filter).
	Goal string `yaml:"goal,omitempty"`

	// Goals is the expected order (trace_order).
	Goals []string `yaml:"goals,omitempty"`

	// Trait, Kind and Guidance filter events (trace_contains, trace_count,
	// final_state).
	Trait    string `yaml:"trait,omitempty"`
	Kind     string `yaml:"kind,omitempty"`
	Guidance string `yaml:"guidance,omitempty"`

	// Count is the expected number of matching events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Expect maps solve log columns to expected values (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. The program path is
// resolved relative to the file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Program != "" && !filepath.IsAbs(scenario.Program) {
		scenario.Program = filepath.Join(filepath.Dir(path), scenario.Program)
	}
	if _, err := os.Stat(scenario.Program); os.IsNotExist(err) {
		return nil, fmt.Errorf("invalid scenario: program not found: %s", scenario.Program)
	}
	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML. The program path is
// taken as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

var (
	validKinds    = map[string]bool{ir.KindUnique: true, ir.KindAmbiguous: true, ir.KindNone: true}
	validGuidance = map[string]bool{"definite": true, "suggested": true, "unknown": true}
	validStatuses = map[string]bool{}
)

func init() {
	for _, s := range []interp.Status{
		interp.StatusBound, interp.StatusHinted, interp.StatusDeferred,
		interp.StatusUnsatisfiable, interp.StatusConflict,
	} {
		validStatuses[s.String()] = true
	}
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Program == "" {
		return fmt.Errorf("program is required")
	}
	if s.Fuel < 0 {
		return fmt.Errorf("fuel must be non-negative")
	}
	if len(s.Goals) == 0 {
		return fmt.Errorf("goals list is required and must be non-empty")
	}

	for i, step := range s.Goals {
		if step.Goal == "" {
			return fmt.Errorf("goals[%d]: goal is required", i)
		}
		if step.Expect == nil {
			continue
		}
		if !validKinds[step.Expect.Kind] {
			return fmt.Errorf("goals[%d].expect: kind must be unique, ambiguous or none, got %q", i, step.Expect.Kind)
		}
		if step.Expect.Guidance != "" {
			if step.Expect.Kind != ir.KindAmbiguous {
				return fmt.Errorf("goals[%d].expect: guidance requires kind ambiguous", i)
			}
			if !validGuidance[step.Expect.Guidance] {
				return fmt.Errorf("goals[%d].expect: unknown guidance %q", i, step.Expect.Guidance)
			}
		}
		if step.Expect.Status != "" && !validStatuses[step.Expect.Status] {
			return fmt.Errorf("goals[%d].expect: unknown status %q", i, step.Expect.Status)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Kind != "" && !validKinds[a.Kind] {
		return fmt.Errorf("assertions[%d]: unknown kind %q", index, a.Kind)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Goal == "" {
			return fmt.Errorf("assertions[%d]: goal is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Goals) == 0 {
			return fmt.Errorf("assertions[%d]: goals list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Goal == "" && a.Trait == "" && a.Kind == "" && a.Guidance == "" {
			return fmt.Errorf("assertions[%d]: final_state needs a goal, trait, kind or guidance filter", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
