package solver

import (
	"errors"
	"fmt"
)

// Fuel counts candidate attempts within one solve and enforces a limit.
//
// Each solve owns its own Fuel. Exhausting it never fails the solve: the
// branch that ran out contributes no candidate and the enclosing results
// degrade to ambiguous, so a bounded search cannot produce a false
// NoSolution.
type Fuel struct {
	limit int
	used  int
}

// NewFuel creates a fuel counter with the given limit.
func NewFuel(limit int) *Fuel {
	return &Fuel{limit: limit}
}

// Consume spends one unit on behalf of goal. It returns
// *FuelExhaustedError once the limit has been reached.
func (f *Fuel) Consume(goal string) error {
	if f.used >= f.limit {
		return &FuelExhaustedError{Goal: goal, Used: f.used, Limit: f.limit}
	}
	f.used++
	return nil
}

// Used returns the units consumed so far.
func (f *Fuel) Used() int {
	return f.used
}

// Exhausted reports whether no units remain.
func (f *Fuel) Exhausted() bool {
	return f.used >= f.limit
}

// Limit returns the configured limit.
func (f *Fuel) Limit() int {
	return f.limit
}

// FuelExhaustedError is returned by Consume when the search budget is spent.
type FuelExhaustedError struct {
	Goal  string // The goal whose candidate could not be tried
	Used  int    // Units consumed
	Limit int    // Configured limit
}

// Error implements the error interface.
func (e *FuelExhaustedError) Error() string {
	return fmt.Sprintf("fuel exhausted at %s: %d of %d units used", e.Goal, e.Used, e.Limit)
}

// IsFuelExhausted returns true if err is a *FuelExhaustedError.
// Uses errors.As to handle wrapped errors.
func IsFuelExhausted(err error) bool {
	var fe *FuelExhaustedError
	return errors.As(err, &fe)
}
