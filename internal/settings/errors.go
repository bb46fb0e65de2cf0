package settings

import (
	"errors"
	"fmt"
)

// Errors returned by the settings model.
var (
	// ErrDuplicateGroupToggle indicates a group defines more than one toggle property.
	ErrDuplicateGroupToggle = errors.New("group already has a group toggle")

	// ErrInvalidGroupToggle indicates a non-boolean property was marked as group toggle.
	ErrInvalidGroupToggle = errors.New("group toggle must be a bool property")

	// ErrDuplicateProperty indicates two properties share a name.
	ErrDuplicateProperty = errors.New("property already defined")

	// ErrReservedName indicates a property uses a structural field name.
	ErrReservedName = errors.New("property name is reserved")

	// ErrUnknownProperty indicates a property name is not part of the type.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrInvalidDefinition indicates a malformed property definition.
	ErrInvalidDefinition = errors.New("invalid property definition")

	// ErrVersionRegression indicates a newer release tag maps to an older storage version.
	ErrVersionRegression = errors.New("storage version decreases between release tags")

	// ErrTypeMismatch indicates a value kind doesn't match the property kind.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrOutOfRange indicates a numeric value is outside the property bounds.
	ErrOutOfRange = errors.New("value out of range")
)

// ValidationError describes why a value was rejected for a property.
type ValidationError struct {
	// Property is the property name.
	Property string
	// Value is the rejected value.
	Value Value
	// Err is ErrTypeMismatch or ErrOutOfRange.
	Err error
	// Message gives details.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (value: %s)", e.Property, e.Message, e.Value)
}

// Unwrap returns the underlying sentinel.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// CoercionError is returned when raw data can't be converted to a Value.
type CoercionError struct {
	Kind Kind
	Raw  any
	Err  error
}

// Error implements the error interface.
func (e *CoercionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot convert %v (%T) to %s: %v", e.Raw, e.Raw, e.Kind, e.Err)
	}
	return fmt.Sprintf("cannot convert %v (%T) to %s", e.Raw, e.Raw, e.Kind)
}

// Unwrap returns the underlying error.
func (e *CoercionError) Unwrap() error {
	return e.Err
}

// Is matches ErrTypeMismatch.
func (e *CoercionError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// FieldError records a persisted field that failed to populate.
// The property keeps its previous value.
type FieldError struct {
	Property string
	Err      error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %v", e.Property, e.Err)
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}
