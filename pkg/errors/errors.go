// Package errors provides the typed error taxonomy shared by provider
// adapters, the job executor and the HTTP surface.
//
// This package defines error codes and types that enable:
//   - Provider failures classified by kind rather than by provider
//   - A single retry policy applied at the job boundary
//   - Machine-readable error codes for the status API
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Provider-call failures use one of seven codes: TIMEOUT, TRANSPORT_ERROR,
// CLIENT_ERROR, SERVER_ERROR, CONTENT_MALFORMED, RATE_LIMITED and
// CONFIGURATION_ERROR. The remaining codes describe local failures
// (NOT_FOUND, CONFLICT, INVALID_INPUT, UNSUPPORTED, INTERNAL_ERROR).
//
// # Usage
//
//	err := errors.New(errors.ErrCodeClientError, "crossref: status %d", code)
//	if errors.IsRetryable(err) {
//	    // reschedule the job
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeTransport, origErr, "fetch %s", url)
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Provider call failures
	ErrCodeTimeout          Code = "TIMEOUT"
	ErrCodeTransport        Code = "TRANSPORT_ERROR"
	ErrCodeClientError      Code = "CLIENT_ERROR"
	ErrCodeServerError      Code = "SERVER_ERROR"
	ErrCodeContentMalformed Code = "CONTENT_MALFORMED"
	ErrCodeRateLimited      Code = "RATE_LIMITED"
	ErrCodeConfiguration    Code = "CONFIGURATION_ERROR"

	// Local failures
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeConflict     Code = "CONFLICT"
	ErrCodeUnsupported  Code = "UNSUPPORTED"
	ErrCodeInternal     Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Status  int    // HTTP status that produced the error, if any
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
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

// coder is implemented by error types that carry their own code.
type coder interface {
	Code() Code
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error or a [RateLimitedError]
// with a matching code.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if no error in the chain carries a code.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// RateLimitedError is returned when a provider itself reports throttling.
// It is distinct from the shared limiter, which never produces an error.
type RateLimitedError struct {
	Provider   string
	RetryAfter time.Duration // zero when the provider gave no hint
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited: retry after %s", e.Provider, e.RetryAfter)
	}
	return e.Provider + ": rate limited"
}

// Code returns the error code for this error type.
func (e *RateLimitedError) Code() Code {
	return ErrCodeRateLimited
}

// RetryAfter returns the provider's retry hint carried by err, if any.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

// IsRetryable reports whether a provider failure is transient: server
// errors, timeouts and provider-reported throttling.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case ErrCodeServerError, ErrCodeTimeout, ErrCodeRateLimited:
		return true
	}
	return false
}

// IsDropped reports whether a provider failure ends its job without data and
// without a retry. Errors carrying no code are treated as dropped.
func IsDropped(err error) bool {
	return err != nil && !IsRetryable(err)
}
