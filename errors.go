package massmail

import (
	"errors"
	"fmt"
)

// Predefined sentinel errors for common cases.
var (
	// ErrMissingEmailColumn indicates a recipient source whose header
	// has no "email" column.
	ErrMissingEmailColumn = errors.New(`recipient source has no "email" column`)

	// ErrNoWorkers indicates that every delivery worker exited before the
	// remaining recipients could be delivered. It is also the recorded
	// cause on the outcomes of recipients no worker consumed.
	ErrNoWorkers = errors.New("all delivery workers exited early")

	// ErrNilTransport indicates a dispatcher constructed without a transport.
	ErrNilTransport = errors.New("transport is nil")
)

// TemplateError represents an error in template processing.
type TemplateError struct {
	// Template is the name of the template that caused the error.
	Template string

	// Operation is the operation that failed (e.g., "parse", "render").
	Operation string

	// Message is the error message.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error in %s during %s: %s", e.Template, e.Operation, e.Message)
}

// Unwrap returns the underlying error.
func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// NewTemplateError creates a new template error.
func NewTemplateError(template, operation, message string, cause error) *TemplateError {
	return &TemplateError{
		Template:  template,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}
