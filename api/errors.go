// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-decode.

package api

import "fmt"

// Common errors used across the library.
var (
	ErrPoolClosed      = fmt.Errorf("decode pool is closed")
	ErrSubstrateClosed = fmt.Errorf("execution substrate is closed")
	ErrSubstrateBusy   = fmt.Errorf("execution substrate is at capacity")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidConfig   = fmt.Errorf("invalid configuration")
	ErrNotSupported    = fmt.Errorf("operation not supported")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeInvalidConfig
	ErrCodeClosed
	ErrCodeNotSupported
	ErrCodeInternal
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Unwrap exposes the sentinel the error was built from.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
		Err:     sentinelFor(code),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func sentinelFor(code ErrorCode) error {
	switch code {
	case ErrCodeInvalidArgument:
		return ErrInvalidArgument
	case ErrCodeInvalidConfig:
		return ErrInvalidConfig
	case ErrCodeClosed:
		return ErrPoolClosed
	case ErrCodeNotSupported:
		return ErrNotSupported
	default:
		return nil
	}
}
