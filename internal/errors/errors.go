package errors

import (
	"fmt"
)

// DirError is the structured error type for peopledex.
// It provides rich context for error handling, logging, and user presentation.
type DirError struct {
	// Code is the unique error code (e.g., "ERR_204_SNAPSHOT_CORRUPT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *DirError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *DirError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with DirError.
func (e *DirError) Is(target error) bool {
	if t, ok := target.(*DirError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *DirError) WithDetail(key, value string) *DirError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *DirError) WithSuggestion(suggestion string) *DirError {
	e.Suggestion = suggestion
	return e
}

// New creates a new DirError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *DirError {
	return &DirError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a DirError from an existing error.
// The error's message becomes the DirError message.
func Wrap(code string, err error) *DirError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *DirError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *DirError {
	return New(ErrCodeFileNotFound, message, cause)
}

// SnapshotError creates a snapshot-consistency error.
// Snapshot errors are recoverable by a full vector rebuild.
func SnapshotError(message string, cause error) *DirError {
	return New(ErrCodeSnapshotCorrupt, message, cause)
}

// ProviderError creates a provider network error.
// Provider errors are typically retryable.
func ProviderError(message string, cause error) *DirError {
	return New(ErrCodeProviderUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *DirError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *DirError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a DirError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if de, ok := err.(*DirError); ok {
		return de.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if de, ok := err.(*DirError); ok {
		return de.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a DirError.
// Returns empty string if not a DirError.
func GetCode(err error) string {
	if de, ok := err.(*DirError); ok {
		return de.Code
	}
	return ""
}

// GetCategory extracts the category from a DirError.
// Returns empty string if not a DirError.
func GetCategory(err error) Category {
	if de, ok := err.(*DirError); ok {
		return de.Category
	}
	return ""
}
