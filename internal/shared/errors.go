package shared

import (
	"errors"
	"fmt"
)

// Domain error taxonomy. Every mutating operation surfaces failures as one of
// these sentinels so the HTTP layer can map them without inspecting strings.
var (
	// ErrPermissionDenied indicates the caller lacks the required role or ownership.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidTransition indicates a status move outside the transition table.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrValidation indicates a missing, negative or out-of-range field.
	ErrValidation = errors.New("validation failed")
	// ErrReferential indicates an allocation referencing a missing or mismatched
	// space/service id.
	ErrReferential = errors.New("referential integrity violation")
	// ErrInvalidState indicates an operation against an offer in the wrong
	// lifecycle phase.
	ErrInvalidState = errors.New("invalid lifecycle state")
	// ErrConflict indicates write-write contention that survived one retry.
	ErrConflict = errors.New("concurrent modification conflict")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
)

// Validationf builds a field-specific validation error.
func Validationf(field string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrValidation, field, fmt.Sprintf(format, args...))
}

// Referentialf builds a referential error naming the offending id.
func Referentialf(kind string, id int64, format string, args ...any) error {
	return fmt.Errorf("%w: %s %d: %s", ErrReferential, kind, id, fmt.Sprintf(format, args...))
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// InvalidStatef names the lifecycle phase that rejected the operation.
func InvalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}
