// Package errs defines the error taxonomy shared by the capture pipeline.
package errs

import (
	"errors"
	"fmt"
)

// Code classifies an error for the invoking collaborator.
type Code string

const (
	// CodePermissionDenied - the OS capture primitive refused access.
	// Recoverable only by user action outside the app; never auto-retried.
	CodePermissionDenied Code = "PERMISSION_DENIED"
	// CodeInvalidSelection - region too small or no window under the
	// pointer. Treated as a cancellation, not a hard error.
	CodeInvalidSelection Code = "INVALID_SELECTION"
	// CodeCaptureFailed - rasterization produced no usable buffer despite
	// permission being granted.
	CodeCaptureFailed Code = "CAPTURE_FAILED"
	// CodePersistenceFailed - a disk write failed; in-memory state was left
	// unchanged.
	CodePersistenceFailed Code = "PERSISTENCE_FAILED"
	// CodeRecognitionFailed - the external OCR engine errored.
	CodeRecognitionFailed Code = "RECOGNITION_FAILED"
	// CodeNotFound - no artifact with the requested id.
	CodeNotFound Code = "NOT_FOUND"
)

// Error is a structured error with a code and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// Is reports whether err (or anything it wraps) carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// NewPermissionDenied creates a PERMISSION_DENIED error naming the
// primitive that refused access.
func NewPermissionDenied(primitive string) *Error {
	return &Error{
		Code:    CodePermissionDenied,
		Message: fmt.Sprintf("screen recording permission denied for %s; grant access in System Settings", primitive),
	}
}

// NewNotFound creates a NOT_FOUND error for an artifact id.
func NewNotFound(id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("artifact not found: %s", id)}
}
