// Package errors provides the coded error type shared across the
// transcription pipeline. Errors carry a machine-readable code, a
// retryable flag the resilience layer switches on, and an optional cause.
package errors

import (
	"errors"
	"fmt"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// IsRetryable reports whether err is a retryable AppError.
// Unknown (non-AppError) errors are treated as transient, matching the
// behavior of remote SDKs that surface raw network errors.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return err != nil
}

// CodeOf returns the error code of err, or ErrCodeInternal for
// non-AppError values.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// --- Common constructors ---

// InvalidConfig creates an AppError for bad job or provider parameters.
func InvalidConfig(reason string) *AppError {
	return New(ErrCodeConfigInvalid, reason)
}

// UnknownProvider creates an AppError for an unregistered provider id.
func UnknownProvider(id string) *AppError {
	return New(ErrCodeProviderUnknown, fmt.Sprintf("provider %q is not registered", id)).
		WithDetail("provider", id)
}

// SourceUnreadable creates an AppError for an unreadable audio source.
func SourceUnreadable(source string, cause error) *AppError {
	return New(ErrCodeSourceUnreadable, fmt.Sprintf("cannot read audio source %s", source)).
		WithCause(cause)
}

// Transient creates a retryable provider error.
func Transient(provider string, cause error) *AppError {
	return New(ErrCodeProviderTransient, fmt.Sprintf("transient failure from provider %s", provider)).
		WithDetail("provider", provider).WithCause(cause)
}

// Permanent creates a non-retryable provider error.
func Permanent(provider, reason string) *AppError {
	return New(ErrCodeProviderPermanent, reason).WithDetail("provider", provider)
}

// AuthFailed creates a non-retryable authentication error.
func AuthFailed(provider string) *AppError {
	return New(ErrCodeAuthFailed, fmt.Sprintf("provider %s rejected credentials", provider)).
		WithDetail("provider", provider)
}

// RateLimited creates a retryable throttling error.
func RateLimited(provider string) *AppError {
	return New(ErrCodeRateLimited, fmt.Sprintf("provider %s is throttling requests", provider)).
		WithDetail("provider", provider)
}

// Timeout creates a retryable deadline error for one unit of work.
func Timeout(operation string) *AppError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s exceeded its deadline", operation)).
		WithDetail("operation", operation)
}

// StagingFailed creates a retryable staging error.
func StagingFailed(key string, cause error) *AppError {
	return New(ErrCodeStagingFailed, "failed to stage chunk to blob storage").
		WithDetail("key", key).WithCause(cause)
}

// UnknownJob creates an AppError for an unknown job handle.
func UnknownJob(id string) *AppError {
	return New(ErrCodeJobUnknown, fmt.Sprintf("no job with id %q", id)).
		WithDetail("job_id", id)
}

// Cancelled creates an AppError recording job cancellation.
func Cancelled(reason string) *AppError {
	return New(ErrCodeJobCancelled, reason)
}

// Internal creates an AppError for unexpected internal failures.
func Internal(message string, cause error) *AppError {
	return New(ErrCodeInternal, message).WithCause(cause)
}
