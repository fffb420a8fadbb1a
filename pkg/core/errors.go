package core

import (
	"errors"
	"fmt"
)

// ExportError represents a structured export failure with category and details
type ExportError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: permission_denied, read_failed, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExportError) Unwrap() error {
	return e.Cause
}

// Is matches any ExportError with the same Code, so
// errors.Is(err, ErrPermissionDenied) works on derived copies.
func (e *ExportError) Is(target error) bool {
	t, ok := target.(*ExportError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExportError) WithCause(cause error) *ExportError {
	return &ExportError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExportError) WithMessage(msg string) *ExportError {
	return &ExportError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExportError) WithDetails(details map[string]interface{}) *ExportError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExportError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	ErrPermissionDenied = &ExportError{
		Category: ErrCategoryPermission,
		Code:     "permission_denied",
		Message:  "required permissions missing",
	}
	ErrReadFailed = &ExportError{
		Category: ErrCategoryRead,
		Code:     "read_failed",
		Message:  "could not read provider",
	}
	ErrNothingToExport = &ExportError{
		Category: ErrCategoryEmpty,
		Code:     "nothing_to_export",
		Message:  "nothing to export",
	}
	ErrSinkCreation = &ExportError{
		Category: ErrCategorySink,
		Code:     "sink_creation",
		Message:  "could not create output entry",
	}
	ErrWriteFailed = &ExportError{
		Category: ErrCategoryWrite,
		Code:     "write_failed",
		Message:  "could not write output",
	}
	ErrInvalidConfig = &ExportError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
)

// CategoryOf returns the category of err, ErrCategoryNone for nil and
// ErrCategoryRead for errors that are not ExportErrors.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryNone
	}
	var ee *ExportError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ErrCategoryRead
}

// MessageOf returns the user-facing message of err: the Message of an
// ExportError without its cause, or err.Error() otherwise.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var ee *ExportError
	if errors.As(err, &ee) {
		return ee.Message
	}
	return err.Error()
}
