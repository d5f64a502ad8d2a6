// Package errors provides structured error types for the lessonpulse pipeline.
// All errors include a category, code, message, and retryable flag so ingress
// adapters and the publisher can make consistent retry decisions.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline component.
type ErrorCategory string

const (
	ErrCategoryIngress    ErrorCategory = "INGRESS"
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryJournal    ErrorCategory = "JOURNAL"
	ErrCategoryPublish    ErrorCategory = "PUBLISH"
	ErrCategoryDeadLetter ErrorCategory = "DEADLETTER"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Ingress codes
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeDeadlineExceeded = "DEADLINE_EXCEEDED"

	// Validation codes
	CodeValidationFailed = "VALIDATION_FAILED"

	// Journal codes
	CodeResourceExhausted  = "RESOURCE_EXHAUSTED"
	CodeCorruptionDetected = "CORRUPTION_DETECTED"
	CodeJournalClosed      = "JOURNAL_CLOSED"

	// Publish codes
	CodeUnavailable     = "UNAVAILABLE"
	CodePublishRejected = "PUBLISH_REJECTED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// PipelineError is the structured error type used throughout the system.
type PipelineError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PipelineError.
func New(category ErrorCategory, code, message string) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(code),
	}
}

// Wrap creates a new PipelineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *PipelineError) WithDetails(details map[string]interface{}) *PipelineError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
// Callers must treat RESOURCE_EXHAUSTED, UNAVAILABLE and DEADLINE_EXCEEDED as
// retryable and everything else as terminal.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// Code extracts the pipeline error code from an error chain, or CodeUnexpected.
func Code(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeUnexpected
}

// isRetryable maps codes to retry semantics. Validation and size errors are
// resolved at the boundary and never retried; backpressure, transient publish
// failures and ingress timeouts are.
func isRetryable(code string) bool {
	switch code {
	case CodeResourceExhausted, CodeUnavailable, CodeDeadlineExceeded:
		return true
	default:
		return false
	}
}
