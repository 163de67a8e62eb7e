// Package errors provides the structured error system for recordstore
// with error codes, categories, and context.
package errors

import (
	"fmt"
)

// ErrorCode represents a structured error code for recordstore operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Store errors
	ErrCodeStoreRead     ErrorCode = "STORE_READ"
	ErrCodeStoreWrite    ErrorCode = "STORE_WRITE"
	ErrCodeStoreStat     ErrorCode = "STORE_STAT"
	ErrCodeStoreNotFound ErrorCode = "STORE_NOT_FOUND"

	// Codec errors
	ErrCodeDecodeFailed ErrorCode = "DECODE_FAILED"
	ErrCodeEncodeFailed ErrorCode = "ENCODE_FAILED"

	// Cache errors
	ErrCodeWriteConflict   ErrorCode = "WRITE_CONFLICT"
	ErrCodeEmptyAggregate  ErrorCode = "EMPTY_AGGREGATE"
	ErrCodeWatcherDegraded ErrorCode = "WATCHER_DEGRADED"

	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// Request errors
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrCodeDuplicateID    ErrorCode = "DUPLICATE_ID"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryStorage       ErrorCategory = "storage"
	CategoryCodec         ErrorCategory = "codec"
	CategoryCache         ErrorCategory = "cache"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryRequest       ErrorCategory = "request"
)

// RecordStoreError represents a structured error with context and metadata.
type RecordStoreError struct {
	Code     ErrorCode     `json:"code"`
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`

	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`
	Cause     error  `json:"-"`

	// Error handling hints
	Retryable  bool `json:"retryable"`
	HTTPStatus int  `json:"http_status,omitempty"`
}

// Error implements the error interface.
func (e *RecordStoreError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, msg)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *RecordStoreError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code, so sentinels compare against wrapped
// instances carrying extra context.
func (e *RecordStoreError) Is(target error) bool {
	if rsErr, ok := target.(*RecordStoreError); ok {
		return e.Code == rsErr.Code
	}
	return false
}

// New creates a new recordstore error with defaults derived from the code.
func New(code ErrorCode, message string) *RecordStoreError {
	return &RecordStoreError{
		Code:       code,
		Category:   GetCategory(code),
		Message:    message,
		Retryable:  IsRetryableByDefault(code),
		HTTPStatus: GetDefaultHTTPStatus(code),
	}
}

// Newf creates a new recordstore error with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *RecordStoreError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a new recordstore error with the given cause attached.
func Wrap(code ErrorCode, message string, cause error) *RecordStoreError {
	return New(code, message).WithCause(cause)
}

// GetCategory determines the category for an error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeStoreRead, ErrCodeStoreWrite, ErrCodeStoreStat, ErrCodeStoreNotFound:
		return CategoryStorage
	case ErrCodeDecodeFailed, ErrCodeEncodeFailed:
		return CategoryCodec
	case ErrCodeWriteConflict, ErrCodeEmptyAggregate, ErrCodeWatcherDegraded:
		return CategoryCache
	case ErrCodeInvalidConfig:
		return CategoryConfiguration
	case ErrCodeInvalidRequest, ErrCodeDuplicateID:
		return CategoryRequest
	default:
		return CategoryCache
	}
}

// IsRetryableByDefault determines if an error is retryable by default.
// Only transient store failures qualify; decode failures and conflicts
// need caller intervention.
func IsRetryableByDefault(code ErrorCode) bool {
	switch code {
	case ErrCodeStoreRead, ErrCodeStoreWrite, ErrCodeStoreStat:
		return true
	default:
		return false
	}
}

// GetDefaultHTTPStatus returns the HTTP status the API layer maps the
// error code to.
func GetDefaultHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest, ErrCodeInvalidConfig:
		return 400
	case ErrCodeStoreNotFound:
		return 404
	case ErrCodeWriteConflict, ErrCodeDuplicateID:
		return 409
	case ErrCodeEmptyAggregate:
		return 422
	default:
		return 500
	}
}

// WithComponent sets the component for an error.
func (e *RecordStoreError) WithComponent(component string) *RecordStoreError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error.
func (e *RecordStoreError) WithOperation(operation string) *RecordStoreError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause.
func (e *RecordStoreError) WithCause(cause error) *RecordStoreError {
	e.Cause = cause
	return e
}

// WithRetryable overrides the default retryable hint.
func (e *RecordStoreError) WithRetryable(retryable bool) *RecordStoreError {
	e.Retryable = retryable
	return e
}

// Sentinel errors for errors.Is checks across package boundaries.
// Matching is by code, so wrapped instances with context still compare
// equal to these.
var (
	ErrStoreNotExist   = New(ErrCodeStoreNotFound, "store does not exist")
	ErrDecodeFailed    = New(ErrCodeDecodeFailed, "store content cannot be parsed")
	ErrWriteConflict   = New(ErrCodeWriteConflict, "store changed since observed token")
	ErrEmptyAggregate  = New(ErrCodeEmptyAggregate, "aggregate undefined over empty collection")
	ErrWatcherDegraded = New(ErrCodeWatcherDegraded, "change watcher degraded")
)
