package model

import (
	"errors"
	"fmt"
)

// Code is the public, machine-readable failure code of an analysis.
type Code string

// Failure codes surfaced to clients.
const (
	CodeNoPeople      Code = "NO_PEOPLE"
	CodeTooManyPeople Code = "TOO_MANY_PEOPLE"
	CodePoorQuality   Code = "POOR_QUALITY"
	CodeInvalidImage  Code = "INVALID_IMAGE"
	CodeAIError       Code = "AI_ERROR"
	CodeRateLimit     Code = "RATE_LIMIT"
	CodeInternal      Code = "INTERNAL"
)

// Error carries a public code and a human message alongside the underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// NewError builds an Error without an underlying cause.
func NewError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// WrapError builds an Error around cause.
func WrapError(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the public code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf extracts the public message from err. Errors without a public
// message never leak their internals.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Internal server error"
}
