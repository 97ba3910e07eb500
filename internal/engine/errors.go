package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while executing a plan.
//
// Runtime errors include:
//   - Fetch failures: the executor could not read rows
//   - Count failures: the executor could not compute a total
//   - Group failures: one group's page could not be read
//
// Compile errors are never wrapped in a RuntimeError; they surface as
// *compiler.Error.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// PlanID identifies the plan being executed.
	PlanID string

	// Group is the group key for group failures.
	Group any

	// Err is the executor error.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeFetchFailed indicates the executor failed to read rows.
	ErrCodeFetchFailed RuntimeErrorCode = "FETCH_FAILED"

	// ErrCodeCountFailed indicates the executor failed to count records.
	ErrCodeCountFailed RuntimeErrorCode = "COUNT_FAILED"

	// ErrCodeGroupFailed indicates a group page could not be read.
	ErrCodeGroupFailed RuntimeErrorCode = "GROUP_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.PlanID != "" {
		msg += fmt.Sprintf(" (plan=%s)", e.PlanID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the executor error.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsRuntimeError returns true if err is, or wraps, a RuntimeError.
func IsRuntimeError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re)
}

// IsGroupError returns true if the error is a group fetch error.
// Uses errors.As to handle wrapped errors.
func IsGroupError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeGroupFailed
	}
	return false
}

func newFetchError(planID string, err error) *RuntimeError {
	return &RuntimeError{Code: ErrCodeFetchFailed, Message: "fetch rows", PlanID: planID, Err: err}
}

func newCountError(planID string, err error) *RuntimeError {
	return &RuntimeError{Code: ErrCodeCountFailed, Message: "count records", PlanID: planID, Err: err}
}

func newGroupError(planID string, key any, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeGroupFailed,
		Message: fmt.Sprintf("fetch group %v", key),
		PlanID:  planID,
		Group:   key,
		Err:     err,
	}
}
