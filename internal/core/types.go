package core

import (
	"context"
	"errors"
	"fmt"
)

// Transport opens delivery connections to a mail backend.
// Implementations handle backend-specific wiring; the dispatcher only ever
// talks to these two interfaces.
type Transport interface {
	// Connect acquires one delivery connection. Each worker calls Connect
	// exactly once and owns the returned Conn for its whole lifetime.
	Connect(ctx context.Context) (Conn, error)

	// Name returns the transport's name for identification and logging.
	Name() string
}

// Conn is a single delivery channel owned by exactly one worker.
type Conn interface {
	// Send delivers one composed envelope. A non-nil error marks that
	// recipient as failed; the connection stays usable for the next send.
	Send(ctx context.Context, env *Envelope) error

	// Close releases the connection. Called on every worker exit path.
	Close() error
}

// Settings holds string-keyed configuration for a transport.
type Settings map[string]string

// Get retrieves a configuration value by key.
func (s Settings) Get(key string) string {
	return s[key]
}

// Set sets a configuration value.
func (s Settings) Set(key, value string) {
	s[key] = value
}

// Record is one raw row from the recipient source, keyed by column name.
// Every Record produced by a loader is guaranteed to have an "email" field.
type Record map[string]string

// Get retrieves a field value by name.
func (r Record) Get(name string) string {
	return r[name]
}

// Email returns the record's email field.
func (r Record) Email() string {
	return r["email"]
}

// Has reports whether the record carries the named field at all,
// as opposed to carrying it with an empty value.
func (r Record) Has(name string) bool {
	_, ok := r[name]
	return ok
}

// Recipient is a Record that passed screening. It enters the work queue
// exactly once and is owned by the worker that receives it.
type Recipient = Record

// Envelope is a fully composed outgoing message, ready for a transport.
// Plain text only: no attachments, no alternative parts.
type Envelope struct {
	// To is the single recipient address.
	To string

	// From is the sender address.
	From string

	// ReplyTo is optional; when empty the header is omitted entirely.
	ReplyTo string

	// Subject is the message subject.
	Subject string

	// Body is the rendered plain-text body.
	Body string
}

// SendOutcome records what happened to one recipient.
type SendOutcome struct {
	// Email is the recipient address the outcome belongs to.
	Email string

	// Success is true when the transport accepted the message.
	Success bool

	// Err carries the failure detail; nil on success.
	Err error
}

// Report aggregates the outcomes of one dispatch run.
type Report struct {
	// Total is the number of recipients that entered the run.
	Total int

	// Delivered is the number of successful sends.
	Delivered int

	// Failed is the number of recipients with a failure outcome.
	Failed int

	// Outcomes holds one entry per recipient, in completion order.
	Outcomes []SendOutcome
}

// Add appends one outcome and updates the counters.
func (r *Report) Add(o SendOutcome) {
	r.Total++
	if o.Success {
		r.Delivered++
	} else {
		r.Failed++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Failures returns the failed outcomes only.
func (r *Report) Failures() []SendOutcome {
	if r.Failed == 0 {
		return nil
	}
	failures := make([]SendOutcome, 0, r.Failed)
	for _, o := range r.Outcomes {
		if !o.Success {
			failures = append(failures, o)
		}
	}
	return failures
}

// ValidationError represents a validation error with specific field information.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string

	// Message is the validation error message.
	Message string

	// Value is the invalid value (optional).
	Value interface{}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation error in %s: %s (value: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Is implements error matching for errors.Is.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// TransportError represents an error from a delivery transport.
type TransportError struct {
	// Transport is the name of the transport that generated the error.
	Transport string

	// Op is the operation that failed (e.g. "connect", "mail", "data").
	Op string

	// Message is the error message from the transport.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s error [%s]: %s", e.Transport, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is.
func (e *TransportError) Is(target error) bool {
	te, ok := target.(*TransportError)
	if !ok {
		return false
	}
	return e.Transport == te.Transport && e.Op == te.Op
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewValidationErrorWithValue creates a new validation error with a value.
func NewValidationErrorWithValue(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// NewTransportError creates a new transport error.
func NewTransportError(transport, op, message string) *TransportError {
	return &TransportError{
		Transport: transport,
		Op:        op,
		Message:   message,
	}
}

// WrapTransportError creates a transport error around an underlying cause.
func WrapTransportError(transport, op string, cause error) *TransportError {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &TransportError{
		Transport: transport,
		Op:        op,
		Message:   msg,
		Cause:     cause,
	}
}

// AsTransportError unwraps err into a *TransportError when possible.
func AsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
