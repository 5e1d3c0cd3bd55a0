package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an application error for the UI layer.
type Code string

const (
	// CodeInvalidInput marks validation failures raised before any network call.
	CodeInvalidInput Code = "INVALID_INPUT"
	// CodeTransient marks network/backend failures worth retrying.
	CodeTransient Code = "TRANSIENT"
	// CodePermission marks platform or permission failures (e.g. microphone denied).
	CodePermission Code = "PERMISSION"
	// CodeConflict marks operations rejected because another one is outstanding.
	CodeConflict Code = "CONFLICT"
	// CodeNotFound marks lookups on records that do not exist.
	CodeNotFound Code = "NOT_FOUND"
)

// Error carries a classification code, a user-facing message and an
// optional cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an error with a code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an error with a code, message and cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// InvalidInput builds a validation error.
func InvalidInput(msg string) error {
	return New(CodeInvalidInput, msg)
}

// Transient wraps a network/backend failure.
func Transient(msg string, cause error) error {
	return Wrap(CodeTransient, msg, cause)
}

// Permission builds a platform/permission error.
func Permission(msg string) error {
	return New(CodePermission, msg)
}

// Conflict builds a concurrent-operation error.
func Conflict(msg string) error {
	return New(CodeConflict, msg)
}

// NotFound builds a missing-record error.
func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

// CodeOf extracts the classification from err, or empty when err is not
// an application error.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
