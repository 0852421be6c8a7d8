package types

import (
	"errors"
	"fmt"
)

// ErrorCode classifies Weft errors so callers can branch on failure class
// without string matching.
type ErrorCode string

// Input and lookup error codes
const (
	ErrCodeValidation ErrorCode = "VALIDATION_FAILED"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
)

// Graph construction error codes
const (
	ErrCodeDanglingReference ErrorCode = "DANGLING_REFERENCE"
	ErrCodeBuildInProgress   ErrorCode = "BUILD_IN_PROGRESS"
	ErrCodeBuildFailed       ErrorCode = "BUILD_FAILED"
)

// Embedding provider error codes
const (
	ErrCodeEmbeddingUnavailable ErrorCode = "EMBEDDING_UNAVAILABLE"
)

// Storage error codes
const (
	ErrCodeStorageCorruption ErrorCode = "STORAGE_CORRUPTION"
	ErrCodeStorageFailed     ErrorCode = "STORAGE_FAILED"
)

// Configuration error codes
const (
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"
)

// WeftError represents a structured error with an error code, message, and
// optional cause. It supports error wrapping and retryability hints.
type WeftError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
// Format: "[CODE] message" or "[CODE] message: cause" if a cause exists.
func (e *WeftError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *WeftError) Unwrap() error {
	return e.Cause
}

// Is matches target errors by code, enabling errors.Is comparisons between
// any two WeftErrors of the same class.
func (e *WeftError) Is(target error) bool {
	var werr *WeftError
	if errors.As(target, &werr) {
		return e.Code == werr.Code
	}
	return false
}

// NewError creates a non-retryable WeftError.
func NewError(code ErrorCode, message string) *WeftError {
	return &WeftError{Code: code, Message: message}
}

// NewRetryableError creates a retryable WeftError for transient failures
// that may succeed on retry (network timeouts, rate limits).
func NewRetryableError(code ErrorCode, message string) *WeftError {
	return &WeftError{Code: code, Message: message, Retryable: true}
}

// WrapError creates a non-retryable WeftError wrapping an existing error.
func WrapError(code ErrorCode, message string, cause error) *WeftError {
	return &WeftError{Code: code, Message: message, Cause: cause}
}

// IsCode reports whether err (or anything it wraps) is a WeftError with the
// given code.
func IsCode(err error, code ErrorCode) bool {
	var werr *WeftError
	if errors.As(err, &werr) {
		return werr.Code == code
	}
	return false
}

// IsRetryable reports whether err carries a retryable hint.
func IsRetryable(err error) bool {
	var werr *WeftError
	if errors.As(err, &werr) {
		return werr.Retryable
	}
	return false
}

// NewValidationError reports rejected input: bad parameters, out-of-range
// weights, malformed records. Never retried.
func NewValidationError(format string, args ...any) *WeftError {
	return NewError(ErrCodeValidation, fmt.Sprintf(format, args...))
}

// NewNotFoundError reports a missing id reference.
func NewNotFoundError(kind string, id ID) *WeftError {
	return NewError(ErrCodeNotFound, fmt.Sprintf("%s not found: %s", kind, id))
}

// NewDanglingReferenceError reports an edge endpoint that does not resolve to
// a stored entity. A committed graph must never contain one.
func NewDanglingReferenceError(source, target ID) *WeftError {
	return NewError(ErrCodeDanglingReference,
		fmt.Sprintf("edge endpoint missing: %s -> %s", source, target))
}

// NewEmbeddingUnavailableError reports an embedding provider failure or a
// missing vector. Marked retryable: callers degrade to keyword-only search
// after bounded retries.
func NewEmbeddingUnavailableError(message string, cause error) *WeftError {
	return &WeftError{
		Code:      ErrCodeEmbeddingUnavailable,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// NewBuildInProgressError rejects a re-entrant graph build.
func NewBuildInProgressError() *WeftError {
	return NewError(ErrCodeBuildInProgress, "a graph build is already running")
}

// NewStorageCorruptionError reports an on-disk integrity failure. Fatal: the
// store refuses to serve until re-import or rebuild.
func NewStorageCorruptionError(message string, cause error) *WeftError {
	return &WeftError{
		Code:    ErrCodeStorageCorruption,
		Message: message,
		Cause:   cause,
	}
}
