package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tsolve/internal/ir"
)

// TraceSnapshot is the golden form of a scenario run. Fuel figures are
// left out so that search tuning does not churn snapshots; the solutions
// themselves must not change.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	SessionID    string       `json:"session_id"`
	Trace        []TraceEvent `json:"trace"`
}

// toIR converts the snapshot to an IR object for canonical JSON.
func (s *TraceSnapshot) toIR() ir.IRObject {
	trace := make(ir.IRArray, len(s.Trace))
	for i, ev := range s.Trace {
		obj := ir.IRObject{
			"goal":       ir.IRString(ev.Goal),
			"query":      ir.IRString(ev.Query),
			"obligation": ir.IRString(ev.Obligation),
			"kind":       ir.IRString(ev.Kind),
			"solution":   ir.IRString(ev.Solution),
			"status":     ir.IRString(ev.Status),
			"seq":        ir.IRInt(ev.Seq),
		}
		if ev.Guidance != "" {
			obj["guidance"] = ir.IRString(ev.Guidance)
		}
		if len(ev.Bindings) > 0 {
			obj["bindings"] = stringMap(ev.Bindings)
		}
		if len(ev.Holes) > 0 {
			obj["holes"] = stringMap(ev.Holes)
		}
		trace[i] = obj
	}

	result := ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"trace":         trace,
	}
	if s.SessionID != "" {
		result["session_id"] = ir.IRString(s.SessionID)
	}
	return result
}

func stringMap(m map[string]string) ir.IRObject {
	obj := make(ir.IRObject, len(m))
	for k, v := range m {
		obj[k] = ir.IRString(v)
	}
	return obj
}

// Snapshot returns the canonical JSON golden form of a result.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		SessionID:    result.SessionID,
		Trace:        result.Trace,
	}
	return ir.MarshalCanonical(snapshot.toIR())
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
