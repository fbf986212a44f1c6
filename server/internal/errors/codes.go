package errors

import (
	"fmt"
)

// ErrorCode represents a specific error type for cache operations.
type ErrorCode string

const (
	// ErrCodeStorage indicates the durable store is unreachable or a query failed.
	ErrCodeStorage ErrorCode = "STORAGE_ERROR"
	// ErrCodeConflict indicates a unique-key violation on insert.
	ErrCodeConflict ErrorCode = "CONFLICT"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeGenerationFailed indicates the AI provider failed to produce an interpretation.
	ErrCodeGenerationFailed ErrorCode = "GENERATION_FAILED"
	// ErrCodeWarmingInProgress indicates a warming run is already active.
	ErrCodeWarmingInProgress ErrorCode = "WARMING_IN_PROGRESS"
	// ErrCodeServiceUnavailable indicates the service is not available.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// CacheError represents a structured error for cache operations.
type CacheError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// New creates a CacheError without a cause.
func New(code ErrorCode, message string) *CacheError {
	return &CacheError{Code: code, Message: message}
}

// Wrap creates a CacheError wrapping a cause.
func Wrap(code ErrorCode, message string, cause error) *CacheError {
	return &CacheError{Code: code, Message: message, Cause: cause}
}
