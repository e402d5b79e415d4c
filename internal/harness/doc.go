// Package harness provides conformance testing for trait solving.
//
// A scenario names a CUE program and a list of its goals with expected
// solutions. Run compiles the program, solves each goal through an
// engine.Runner logging into a fresh in-memory solve log, checks the
// expect clauses, then evaluates assertions over the trace and the log.
//
// # Scenario Format
//
//	name: closure_output
//	description: "A closure's call output is inferred"
//	program: ../programs/basics
//	fuel: 500
//	goals:
//	  - goal: closure_output
//	    expect:
//	      kind: unique
//	      solution: "Unique[?0 := i32]"
//	      status: bound
//	      bindings: { R: i32 }
//	assertions:
//	  - type: trace_contains
//	    goal: closure_output
//	    kind: unique
//	  - type: final_state
//	    goal: closure_output
//	    expect: { trait: FnOnce, kind: unique }
//
// # Assertion Types
//
//   - trace_contains: a goal appears in the trace, optionally with a kind
//     and guidance
//   - trace_order: goals appear in the given order
//   - trace_count: exactly Count events match the trait, kind and guidance
//     filters
//   - final_state: exactly one logged event matches the filters and its
//     columns equal the expected values
//
// # Deterministic Testing
//
// Every run uses a fixed session id ("scenario-" + name unless the
// scenario sets one), a logical clock starting at zero and an isolated
// in-memory SQLite log, so the trace of a scenario is identical across
// runs and can be compared against a golden snapshot:
//
//	go test ./internal/harness -update
package harness
