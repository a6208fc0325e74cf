package utils

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of an error
type ErrorCategory int

const (
	CategoryInternal ErrorCategory = iota
	CategoryValidation
	CategoryDecode
	CategoryNormalization
	CategoryGeneration
	CategoryTimeout
	CategoryCommit
)

// Reason codes reported to clients in error bodies and per-file results.
const (
	CodeValidation    = "validation_error"
	CodeDecode        = "decoding_error"
	CodeNormalization = "normalization_error"
	CodeGeneration    = "generation_error"
	CodeTimeout       = "timeout_error"
	CodeCommit        = "commit_error"
	CodeInternal      = "internal_error"
)

// StructuredError represents a standardized error with a reason code
type StructuredError struct {
	Code      string
	Message   string
	Category  ErrorCategory
	RootCause error
	Resource  string
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.RootCause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.RootCause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for compatibility with errors.Is and errors.As
func (e *StructuredError) Unwrap() error {
	return e.RootCause
}

// NewStructuredError creates a new structured error
func NewStructuredError(code, message string, category ErrorCategory, rootCause error) *StructuredError {
	return &StructuredError{
		Code:      code,
		Message:   message,
		Category:  category,
		RootCause: rootCause,
	}
}

// WithResource attaches the path or identifier the error refers to.
func (e *StructuredError) WithResource(resource string) *StructuredError {
	e.Resource = resource
	return e
}

// NewValidationError creates a request-level validation error
func NewValidationError(message string, rootCause error) *StructuredError {
	return NewStructuredError(CodeValidation, message, CategoryValidation, rootCause)
}

// NewDecodeError creates a per-file content decoding error
func NewDecodeError(path string, rootCause error) *StructuredError {
	return NewStructuredError(CodeDecode, "could not decode content", CategoryDecode, rootCause).WithResource(path)
}

// NewNormalizationError records a formatter rejection for one side of a comparison
func NewNormalizationError(side string, rootCause error) *StructuredError {
	return NewStructuredError(CodeNormalization, fmt.Sprintf("%s did not normalize", side), CategoryNormalization, rootCause)
}

// NewGenerationError wraps a failure of the text generation collaborator
func NewGenerationError(path string, rootCause error) *StructuredError {
	return NewStructuredError(CodeGeneration, "candidate generation failed", CategoryGeneration, rootCause).WithResource(path)
}

// NewTimeoutError reports an external call that exceeded its deadline
func NewTimeoutError(operation string, rootCause error) *StructuredError {
	return NewStructuredError(CodeTimeout, fmt.Sprintf("%s timed out", operation), CategoryTimeout, rootCause)
}

// NewCommitError wraps a VCS failure
func NewCommitError(operation string, rootCause error) *StructuredError {
	return NewStructuredError(CodeCommit, fmt.Sprintf("commit step %s failed", operation), CategoryCommit, rootCause)
}

// NewInternalError wraps an unexpected failure
func NewInternalError(message string, rootCause error) *StructuredError {
	return NewStructuredError(CodeInternal, message, CategoryInternal, rootCause)
}

// CodeOf returns the reason code carried by err, or CodeInternal when err is
// not a StructuredError. A nil error has no code.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}

// IsCategory reports whether err carries the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Category == category
	}
	return false
}
