// Unified error handling for the engraver controller.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import "fmt"

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Protocol errors
	ErrFormat         ErrorCode = "FORMAT"
	ErrUnknownCommand ErrorCode = "UNKNOWN_COMMAND"

	// Motion errors
	ErrBounds ErrorCode = "BOUNDS"

	// Runtime errors
	ErrRuntime     ErrorCode = "RUNTIME"
	ErrRuntimeInit ErrorCode = "RUNTIME_INIT"
)

// ControllerError is the unified error type for the controller.
// Every ControllerError is recoverable: it renders as an ERR response
// line and the controller stays ready for the next command.
type ControllerError struct {
	// Code is the error category
	Code ErrorCode

	// Message is the human-readable description; for protocol and motion
	// errors it is the exact ERR reason sent over the wire
	Message string

	// Err wraps the underlying error
	Err error
}

// Error implements the error interface
func (e *ControllerError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error
func (e *ControllerError) Unwrap() error {
	return e.Err
}

// New creates a new ControllerError
func New(code ErrorCode, message string) *ControllerError {
	return &ControllerError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a code and message
func Wrap(err error, code ErrorCode, message string) *ControllerError {
	return &ControllerError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// FormatError creates an error for malformed command input
func FormatError(reason string) *ControllerError {
	return New(ErrFormat, reason)
}

// BoundsError creates an error for a move target outside travel limits
func BoundsError() *ControllerError {
	return New(ErrBounds, "Target position out of bounds")
}

// UnknownCommandError creates an error for an unrecognized mnemonic
func UnknownCommandError() *ControllerError {
	return New(ErrUnknownCommand, "Unknown command")
}

// RuntimeErrorInit creates an error for initialization failure
func RuntimeErrorInit(component string, reason string) *ControllerError {
	return New(ErrRuntimeInit, fmt.Sprintf("failed to initialize %s: %s", component, reason))
}

// Is checks if an error matches the given error code
func Is(err error, code ErrorCode) bool {
	if cerr, ok := err.(*ControllerError); ok {
		return cerr.Code == code
	}
	return false
}

// IsProtocol checks if an error is a protocol-level error
func IsProtocol(err error) bool {
	return Is(err, ErrFormat) || Is(err, ErrUnknownCommand)
}
