package domain

import (
	"errors"
	"strings"
)

var (
	// ErrOrderNotFound is returned when an order id does not resolve to a record.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists is returned when creating an order whose id is already taken.
	ErrOrderExists = errors.New("order already exists")
	// ErrValidation marks malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrIllegalTransition is returned when mutating an order in a state that forbids it.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrBackendUnavailable marks transient store or channel failures worth retrying.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrAlreadyApplied is returned by ApplyMutations when a WriteOnce key is already recorded.
	// Stores treat it as success and return the order unchanged.
	ErrAlreadyApplied = errors.New("write already applied")
)

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields []string
}

// NewValidationError builds a ValidationError from field messages.
func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
