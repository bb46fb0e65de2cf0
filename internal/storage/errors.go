package storage

import (
	"errors"
	"fmt"
)

// Errors returned by the storage provider.
var (
	// ErrNilInstance indicates a nil settings instance was passed.
	ErrNilInstance = errors.New("settings instance is nil")

	// ErrAlreadyRegistered indicates the settings id is already registered.
	ErrAlreadyRegistered = errors.New("settings already registered")

	// ErrNotRegistered indicates the settings id is not registered.
	ErrNotRegistered = errors.New("settings not registered")

	// ErrUnknownCodec indicates a codec name has no implementation.
	ErrUnknownCodec = errors.New("unknown storage format")
)

// StorageError reports a failed file operation.
type StorageError struct {
	// Op is the operation that failed ("read", "write", "mkdir", ...).
	Op string
	// Path is the file path.
	Path string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// DecodeError reports a settings file that could not be decoded at all.
type DecodeError struct {
	// Path is the file path.
	Path string
	// Line is the line number where decoding failed (if available).
	Line int
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("decode error in %s at line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("decode error in %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
