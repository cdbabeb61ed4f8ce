// Package errors provides structured error types for famtree.
//
// Every failure that reaches the user is reported as a status message rather
// than a blank chart, so errors carry a machine-readable [Code] next to a
// human-readable message:
//
//	err := errors.New(errors.ErrCodeInvalidInput, "unknown family: %s", id)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeLayoutFailed, cause, "layout failed after relaxed retry")
//
// [UserMessage] returns the message that belongs in the status line.
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidPayload Code = "INVALID_PAYLOAD"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"

	// Resource not found errors
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodeSessionNotFound Code = "SESSION_NOT_FOUND"

	// Network errors
	ErrCodeNetwork     Code = "NETWORK_ERROR"
	ErrCodeTimeout     Code = "TIMEOUT"
	ErrCodeUnavailable Code = "UNAVAILABLE"

	// Layout errors
	ErrCodeLayoutFailed Code = "LAYOUT_FAILED"
	ErrCodeEngine       Code = "ENGINE_ERROR"
	ErrCodeBusy         Code = "BUSY"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns the status-line text for err.
// For *Error types the message is returned without the code prefix; known
// codes without a message fall back to a generic description.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if msg, ok := defaultMessages[e.Code]; ok {
			return msg
		}
		return string(e.Code)
	}
	return err.Error()
}

var defaultMessages = map[Code]string{
	ErrCodeLayoutFailed: "layout failed; the chart was not updated",
	ErrCodeEngine:       "layout engine error",
	ErrCodeBusy:         "a layout is already running",
	ErrCodeNetwork:      "could not reach the family tree service",
	ErrCodeTimeout:      "the family tree service timed out",
	ErrCodeUnavailable:  "the family tree service is temporarily unavailable",
	ErrCodeNotFound:     "not found",
}

// HTTPStatus maps an error code to the HTTP status used by the chart server.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidPayload:
		return 400
	case ErrCodeNotFound, ErrCodeSessionNotFound:
		return 404
	case ErrCodeBusy:
		return 409
	case ErrCodeNetwork, ErrCodeUnavailable:
		return 502
	case ErrCodeTimeout:
		return 504
	case ErrCodeLayoutFailed, ErrCodeEngine:
		return 422
	default:
		return 500
	}
}
