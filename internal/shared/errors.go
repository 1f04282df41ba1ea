package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthenticated indicates a missing, invalid or expired credential, or an inactive principal.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the principal lacks the role or permission for the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates one or more field constraints were violated.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrReorderFailed indicates a reorder batch was rolled back.
	ErrReorderFailed = errors.New("reorder failed")
	// ErrConfiguration indicates a wiring mistake detected at startup.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnavailable indicates an optional integration is not configured.
	ErrUnavailable = errors.New("not available")
)

// FieldError describes a single violated constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field-level violations. It matches ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a ValidationError from the given field errors.
func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

// FieldInvalid is shorthand for a single-field validation error.
func FieldInvalid(field, message string) *ValidationError {
	return NewValidationError(FieldError{Field: field, Message: message})
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is reports ErrValidation equivalence.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ConflictError reports a uniqueness violation on a field. It matches ErrConflict.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s already in use", ErrConflict.Error(), e.Field)
}

// Is reports ErrConflict equivalence.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// FieldErrors renders the conflict as a validation-shaped field list.
func (e *ConflictError) FieldErrors() []FieldError {
	return []FieldError{{Field: e.Field, Message: e.Field + " already in use"}}
}

// ConfigurationError reports an unknown entity descriptor name.
type ConfigurationError struct {
	Name string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: unknown entity %q", ErrConfiguration.Error(), e.Name)
}

// Is reports ErrConfiguration equivalence.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
