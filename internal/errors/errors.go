// Package errors provides structured error types for the research agent.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrLocked       = errors.New("process is locked")
	ErrInvalidPhase = errors.New("invalid phase")
	ErrInvalidInput = errors.New("invalid input")
	ErrTimeout      = errors.New("operation timed out")
	ErrRateLimit    = errors.New("rate limit exceeded")
	ErrUnavailable  = errors.New("service unavailable")
	ErrMigration    = errors.New("legacy record cannot be migrated")
)

// APIError represents an error from an external collaborator call
// (LLM, paper search, PDF download).
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error (status %d): %s: %v", e.Service, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError creates a new API error.
func NewAPIError(service string, statusCode int, message string) *APIError {
	return &APIError{Service: service, StatusCode: statusCode, Message: message}
}

// WrapAPI creates an API error wrapping an underlying cause.
func WrapAPI(service string, statusCode int, message string, err error) *APIError {
	return &APIError{Service: service, StatusCode: statusCode, Message: message, Err: err}
}

// PreconditionError names the specific unmet condition for an operation
// rejected at the boundary, before any mutation.
type PreconditionError struct {
	Condition string
	Err       error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %s: %v", e.Condition, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// NewPrecondition wraps a sentinel with the condition that was not met.
func NewPrecondition(condition string, err error) *PreconditionError {
	return &PreconditionError{Condition: condition, Err: err}
}

// IsRetryable returns true if the error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}
