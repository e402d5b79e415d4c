package engine

import (
	"errors"
	"fmt"
)

// RunErrorCode categorizes session errors.
type RunErrorCode string

const (
	// ErrCodeUnknownGoal indicates a goal name the program does not declare.
	ErrCodeUnknownGoal RunErrorCode = "UNKNOWN_GOAL"

	// ErrCodeEnvironment indicates the goal's context could not be built.
	ErrCodeEnvironment RunErrorCode = "ENVIRONMENT"

	// ErrCodeEncode indicates the goal's site could not be encoded.
	ErrCodeEncode RunErrorCode = "ENCODE"

	// ErrCodeApply indicates a solution could not be applied to the goal's
	// inference table.
	ErrCodeApply RunErrorCode = "APPLY"

	// ErrCodeGoalChanged indicates a logged goal now encodes to a different
	// obligation.
	ErrCodeGoalChanged RunErrorCode = "GOAL_CHANGED"

	// ErrCodeNoStore indicates a log operation on a runner without a store.
	ErrCodeNoStore RunErrorCode = "NO_STORE"
)

// RunError is an error detected while running a goal.
type RunError struct {
	Code    RunErrorCode
	Goal    string
	Message string
	Err     error
}

func (e *RunError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Goal != "" {
		return fmt.Sprintf("%s: %s (goal=%s)", e.Code, msg, e.Goal)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *RunError) Unwrap() error { return e.Err }

// IsRunError reports whether err wraps a RunError with the given code.
func IsRunError(err error, code RunErrorCode) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
