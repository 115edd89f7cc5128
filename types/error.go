package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the library.
type ErrorCode string

const (
	// ErrConfig marks an invalid bucket, policy, or configuration
	// value. Fatal at configuration time.
	ErrConfig ErrorCode = "CONFIG_ERROR"

	// ErrBudgetExhausted marks a request whose available budget is not
	// positive, or whose sticky minimums exceed the budget even after
	// drop-order fallback. Fatal, aborts the request.
	ErrBudgetExhausted ErrorCode = "BUDGET_EXHAUSTED"

	// ErrCompressionInfeasible marks a bucket whose minimal content cannot
	// fit its token target. Recovered by dropping if the bucket is
	// droppable, otherwise fatal.
	ErrCompressionInfeasible ErrorCode = "COMPRESSION_INFEASIBLE"

	// ErrDependency marks a tokenizer or summarizer failure. Surfaced
	// unchanged, never retried internally.
	ErrDependency ErrorCode = "DEPENDENCY_ERROR"

	// ErrBudgetOverflow marks an assembled total that exceeds the budget
	// despite correct accounting. Internal invariant violation, always
	// fatal, never silently corrected.
	ErrBudgetOverflow ErrorCode = "BUDGET_OVERFLOW"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Bucket    BucketID  `json:"bucket,omitempty"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithBucket names the bucket the error relates to.
func (e *Error) WithBucket(id BucketID) *Error {
	e.Bucket = id
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// NewConfigError creates a CONFIG_ERROR.
func NewConfigError(format string, args ...any) *Error {
	return NewError(ErrConfig, fmt.Sprintf(format, args...))
}

// NewBudgetExhausted creates a BUDGET_EXHAUSTED error.
func NewBudgetExhausted(format string, args ...any) *Error {
	return NewError(ErrBudgetExhausted, fmt.Sprintf(format, args...))
}

// NewCompressionInfeasible creates a COMPRESSION_INFEASIBLE error for a bucket.
func NewCompressionInfeasible(id BucketID, format string, args ...any) *Error {
	return NewError(ErrCompressionInfeasible, fmt.Sprintf(format, args...)).WithBucket(id)
}

// NewDependencyError creates a DEPENDENCY_ERROR wrapping a collaborator failure.
func NewDependencyError(message string, cause error) *Error {
	return NewError(ErrDependency, message).WithCause(cause)
}

// NewBudgetOverflow creates a BUDGET_OVERFLOW error.
func NewBudgetOverflow(format string, args ...any) *Error {
	return NewError(ErrBudgetOverflow, fmt.Sprintf(format, args...))
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, or "" when err is not an
// *Error.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
