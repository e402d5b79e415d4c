package registry

import (
	"errors"
	"fmt"
)

// ConsistencyErrorCode categorizes registry misuse.
type ConsistencyErrorCode string

const (
	// ErrCodeDuplicateImpl indicates an implementation was registered twice.
	ErrCodeDuplicateImpl ConsistencyErrorCode = "DUPLICATE_IMPL"

	// ErrCodeDuplicateAssocValue indicates an impl already binds the name.
	ErrCodeDuplicateAssocValue ConsistencyErrorCode = "DUPLICATE_ASSOC_VALUE"

	// ErrCodeDuplicateDecl indicates a trait, type or closure was declared twice.
	ErrCodeDuplicateDecl ConsistencyErrorCode = "DUPLICATE_DECL"

	// ErrCodeUnknownImpl indicates a GlobalImplID that was never issued.
	ErrCodeUnknownImpl ConsistencyErrorCode = "UNKNOWN_IMPL"

	// ErrCodeUnknownAssocValue indicates an AssocValueID that was never issued.
	ErrCodeUnknownAssocValue ConsistencyErrorCode = "UNKNOWN_ASSOC_VALUE"

	// ErrCodeUnknownTrait indicates a reference to an undeclared trait.
	ErrCodeUnknownTrait ConsistencyErrorCode = "UNKNOWN_TRAIT"

	// ErrCodeUnknownDecl indicates a reference to an undeclared closure or
	// associated type name.
	ErrCodeUnknownDecl ConsistencyErrorCode = "UNKNOWN_DECL"
)

// ConsistencyError signals that the layers feeding the registry are out of
// sync with it. It is raised by panic: callers are expected to fail fast,
// not recover.
type ConsistencyError struct {
	Code    ConsistencyErrorCode
	Message string
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConsistencyError returns true if err is a *ConsistencyError with the
// given code. Uses errors.As to handle wrapped errors.
func IsConsistencyError(err error, code ConsistencyErrorCode) bool {
	var ce *ConsistencyError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

func fault(code ConsistencyErrorCode, format string, args ...any) {
	panic(&ConsistencyError{Code: code, Message: fmt.Sprintf(format, args...)})
}
