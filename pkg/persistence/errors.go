// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrRequestNotFound indicates a request was not found by the given identifier.
	ErrRequestNotFound = errors.New("request not found")

	// ErrAuditAppendFailed indicates an audit entry could not be durably
	// appended. The engine treats this as fatal for the attempted transition.
	ErrAuditAppendFailed = errors.New("audit append failed")
)

// RequestError wraps request-related errors with additional context.
type RequestError struct {
	Op        string // Operation being performed (e.g. "GetByID", "Save")
	RequestID string
	Err       error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s operation failed for request %s: %v", e.Op, e.RequestID, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func (e *RequestError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRequestError creates a new request error with context.
func NewRequestError(op, requestID string, err error) *RequestError {
	return &RequestError{Op: op, RequestID: requestID, Err: err}
}

// AuditError wraps audit-trail errors with additional context.
type AuditError struct {
	Op        string
	RequestID string
	Err       error
}

func (e *AuditError) Error() string {
	return fmt.Sprintf("%s operation failed for audit trail of request %s: %v", e.Op, e.RequestID, e.Err)
}

func (e *AuditError) Unwrap() error {
	return e.Err
}

func (e *AuditError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsRequestNotFound checks if an error indicates a request was not found.
func IsRequestNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound)
}

// IsAuditAppendFailed checks if an error indicates a failed audit append.
func IsAuditAppendFailed(err error) bool {
	return errors.Is(err, ErrAuditAppendFailed)
}
