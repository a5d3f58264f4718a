package model

import (
	"errors"
	"fmt"
)

// ErrValidation matches every *ValidationError.
var ErrValidation = errors.New("validation error")

// ValidationError reports malformed input: bad values, non-monotonic price
// bands or references to entities that do not exist.
type ValidationError struct {
	Table  string
	Entity string
	Reason string
}

// NewValidationError builds a ValidationError.
func NewValidationError(table, entity, reason string) *ValidationError {
	return &ValidationError{Table: table, Entity: entity, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("%s: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Table, e.Entity, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) succeed.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
