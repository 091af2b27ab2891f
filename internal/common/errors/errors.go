package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the agent
var (
	// ErrInvalidInput indicates invalid caller input
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidConfiguration indicates configuration issues
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrUnavailable indicates a metric source is not available on this host
	ErrUnavailable = errors.New("source unavailable")
	// ErrDisabled indicates a feature was turned off in configuration
	ErrDisabled = errors.New("feature disabled")
)

// WrapError wraps an error with additional context information
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapErrorf wraps an error with formatted context information
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// NewError creates a new error with a formatted message
func NewError(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// ValidationError represents validation errors with field-specific information
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap lets errors.Is match ErrInvalidInput
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// SourceError reports a failed read from one metric source.
type SourceError struct {
	Source  string
	Wrapped error
}

func (e *SourceError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("metric source '%s' failed: %v", e.Source, e.Wrapped)
	}
	return fmt.Sprintf("metric source '%s' failed", e.Source)
}

func (e *SourceError) Unwrap() error {
	return e.Wrapped
}

// NewSourceError creates a new source error
func NewSourceError(source string, wrapped error) *SourceError {
	return &SourceError{
		Source:  source,
		Wrapped: wrapped,
	}
}
