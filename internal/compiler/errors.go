package compiler

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes compile errors.
type ErrorCode string

const (
	// ErrCodeUnknownField indicates a path segment is not in the catalog.
	ErrCodeUnknownField ErrorCode = "UNKNOWN_FIELD"

	// ErrCodeNotARelationship indicates a non-final path segment is a leaf field.
	ErrCodeNotARelationship ErrorCode = "NOT_A_RELATIONSHIP"

	// ErrCodeUnknownOperator indicates an operator name is neither built-in
	// nor registered.
	ErrCodeUnknownOperator ErrorCode = "UNKNOWN_OPERATOR"

	// ErrCodeTypeMismatch indicates an operator (or granularity) is invalid
	// for the field's semantic type, or an operand has the wrong arity.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeConflictingTimezone indicates both tz_offset and timezone were given.
	ErrCodeConflictingTimezone ErrorCode = "CONFLICTING_TIMEZONE"

	// ErrCodeInvalidGranularity indicates an unknown granularity name.
	ErrCodeInvalidGranularity ErrorCode = "INVALID_GRANULARITY"

	// ErrCodeMalformed indicates a structurally invalid document.
	ErrCodeMalformed ErrorCode = "MALFORMED_SPECIFICATION"

	// ErrCodeUnknownEntity indicates the root entity is not in the catalog.
	ErrCodeUnknownEntity ErrorCode = "UNKNOWN_ENTITY"

	// ErrCodeUnknownTimezone indicates an IANA zone name could not be loaded.
	ErrCodeUnknownTimezone ErrorCode = "UNKNOWN_TIMEZONE"
)

// Error is a compile-time failure. Every structural problem in a
// specification surfaces as an Error before any executor runs.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the offending field path or document location, if any.
	Path string

	// Operator is the offending operator name, if any.
	Operator string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Path != "" && e.Operator != "":
		return fmt.Sprintf("%s: %s (path=%s, operator=%s)", e.Code, e.Message, e.Path, e.Operator)
	case e.Path != "":
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	case e.Operator != "":
		return fmt.Sprintf("%s: %s (operator=%s)", e.Code, e.Message, e.Operator)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsCode reports whether err is (or wraps) an Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// CodeOf returns the code of a compile error, or "" if err is not one.
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func newError(code ErrorCode, path, format string, args ...any) *Error {
	return &Error{Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}

func malformed(path, format string, args ...any) *Error {
	return newError(ErrCodeMalformed, path, format, args...)
}
