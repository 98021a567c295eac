package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of a pipeline error.
type ErrorType string

const (
	// ErrorTypeStageFailure indicates a stage could not produce output. The
	// run aborts; this is never conflated with a kernel stop.
	ErrorTypeStageFailure ErrorType = "stage_failure"

	// ErrorTypeKernelGate indicates the decision oracle was unreachable,
	// timed out, or replied with something other than ok/stop.
	ErrorTypeKernelGate ErrorType = "kernel_gate_failure"

	// ErrorTypePersistence indicates the terminal record could not be written.
	ErrorTypePersistence ErrorType = "persistence_failure"

	// ErrorTypeValidation indicates a malformed or invalid request.
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeNotFound indicates a requested record does not exist.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeServer indicates an internal failure.
	ErrorTypeServer ErrorType = "server"
)

// Error is the canonical failure type crossing component boundaries. It
// carries enough context for the emitter to name the failing component in
// the stream and for handlers to pick a status code.
type Error struct {
	Type ErrorType `json:"type"`

	// Component names what failed: a stage's agent name, "kernel", or a
	// subsystem label.
	Component string `json:"component,omitempty"`

	// Stage is the 1-based index of the stage being processed, if any.
	Stage int `json:"stage,omitempty"`

	Message string `json:"message"`

	// Err is the wrapped cause, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Component, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the cause to errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Err }

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a new pipeline error.
func NewError(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message}
}

// WithComponent names the failing component.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// WithStage attaches the 1-based stage index.
func (e *Error) WithStage(stage int) *Error {
	e.Stage = stage
	return e
}

// Wrap attaches the underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// Convenience constructors for the taxonomy.

// ErrStageFailure wraps a stage execution failure.
func ErrStageFailure(agent string, stage int, err error) *Error {
	return NewError(ErrorTypeStageFailure, err.Error()).
		WithComponent(agent).
		WithStage(stage).
		Wrap(err)
}

// ErrKernelGate wraps a gate transport or protocol failure.
func ErrKernelGate(stage int, err error) *Error {
	return NewError(ErrorTypeKernelGate, err.Error()).
		WithComponent(AgentKernel).
		WithStage(stage).
		Wrap(err)
}

// ErrPersistence wraps a record write failure.
func ErrPersistence(err error) *Error {
	return NewError(ErrorTypePersistence, err.Error()).Wrap(err)
}

// ErrValidation creates a validation error.
func ErrValidation(message string) *Error {
	return NewError(ErrorTypeValidation, message)
}

// ErrNotFound creates a not found error.
func ErrNotFound(message string) *Error {
	return NewError(ErrorTypeNotFound, message)
}

// errType extracts the taxonomy type from anywhere in an error chain.
func errType(err error) (ErrorType, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Type, true
	}
	return "", false
}

// IsStageFailure reports whether err is a stage execution failure.
func IsStageFailure(err error) bool {
	t, ok := errType(err)
	return ok && t == ErrorTypeStageFailure
}

// IsKernelGateFailure reports whether err is a gate transport/protocol failure.
func IsKernelGateFailure(err error) bool {
	t, ok := errType(err)
	return ok && t == ErrorTypeKernelGate
}

// IsPersistenceFailure reports whether err is a record write failure.
func IsPersistenceFailure(err error) bool {
	t, ok := errType(err)
	return ok && t == ErrorTypePersistence
}
