// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-zstd.

package api

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeResourceExhausted
	ErrCodeInvalidParameter
	ErrCodeCompressorFailure
	ErrCodeProtocolViolation
	ErrCodeInternal
)

// String returns the code's short name.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeResourceExhausted:
		return "resource exhausted"
	case ErrCodeInvalidParameter:
		return "invalid parameter"
	case ErrCodeCompressorFailure:
		return "compressor failure"
	case ErrCodeProtocolViolation:
		return "protocol violation"
	default:
		return "internal error"
	}
}

// Common errors used across the library. Each one carries a code, so
// errors.Is(err, ErrProtocolViolation) matches every *Error with that code.
var (
	ErrResourceExhausted = NewError(ErrCodeResourceExhausted, "resource exhausted")
	ErrInvalidParameter  = NewError(ErrCodeInvalidParameter, "invalid parameter")
	ErrCompressorFailure = NewError(ErrCodeCompressorFailure, "compressor failure")
	ErrProtocolViolation = NewError(ErrCodeProtocolViolation, "protocol violation")

	ErrEngineClosed = NewError(ErrCodeProtocolViolation, "engine is closed")
	ErrSrcSizeWrong = NewError(ErrCodeProtocolViolation, "source size differs from pledged size")
	ErrDstTooSmall  = NewError(ErrCodeCompressorFailure, "destination buffer too small")
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
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Message == e.Message || isCodeSentinel(t))
}

// isCodeSentinel reports whether t is one of the code-level sentinels, which
// match any error of their code.
func isCodeSentinel(t *Error) bool {
	return t == ErrResourceExhausted || t == ErrInvalidParameter ||
		t == ErrCompressorFailure || t == ErrProtocolViolation
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a structured error with code around err.
func Wrap(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithContext adds context information to the error. It returns a copy so
// package-level sentinels are never mutated.
func (e *Error) WithContext(key string, value any) *Error {
	ne := *e
	ne.Context = make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		ne.Context[k] = v
	}
	ne.Context[key] = value
	return &ne
}

// CodeOf returns the ErrorCode carried by err, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
