package solver

import "github.com/roach88/tsolve/internal/ir"

// goalStack tracks the canonical goals currently being solved within one
// solve call.
//
// Meeting a goal that is already on the stack is a cycle. Instead of
// recursing, the solver answers with the entry's provisional result:
//   - coinductive goals (auto traits, well-formedness) start out provisionally
//     true, so a self-referential proof succeeds unless contradicted
//   - inductive goals start out with no solution, so a cycle contributes no
//     candidate
//
// When an entry's provisional result was consulted, the solver re-solves
// the goal with the new result as the provisional one until it stops
// changing.
type goalStack struct {
	entries []*stackEntry
	index   map[string]int // goal key -> depth
}

type stackEntry struct {
	key         string
	goal        ir.Goal
	coinductive bool
	provisional ir.Solution

	// consulted is set when a cycle read provisional.
	consulted bool
}

func newGoalStack() *goalStack {
	return &goalStack{index: make(map[string]int)}
}

// lookup returns the depth of key if it is on the stack.
func (s *goalStack) lookup(key string) (int, bool) {
	d, ok := s.index[key]
	return d, ok
}

// push adds an entry and returns its depth.
func (s *goalStack) push(e *stackEntry) int {
	depth := len(s.entries)
	s.entries = append(s.entries, e)
	s.index[e.key] = depth
	return depth
}

// pop removes the top entry.
func (s *goalStack) pop() {
	top := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]
	delete(s.index, top.key)
}

func (s *goalStack) at(depth int) *stackEntry {
	return s.entries[depth]
}

// depth returns the number of goals on the stack.
func (s *goalStack) depth() int {
	return len(s.entries)
}
