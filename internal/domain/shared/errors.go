package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying driver or I/O error, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches domain errors by code so wrapped instances compare equal to the
// package-level sentinels.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error carrying an underlying cause
func WrapDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Error codes
const (
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeInvalidState      = "INVALID_STATE"
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	CodeStoreWriteFailure = "STORE_WRITE_FAILURE"
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeSyncInProgress    = "SYNC_IN_PROGRESS"
	CodeInvalidPeriod     = "INVALID_PERIOD"
)

// Common domain errors
var (
	ErrNotFound          = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput      = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrInvalidState      = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrSourceUnavailable = NewDomainError(CodeSourceUnavailable, "Ledger source unavailable")
	ErrStoreWriteFailure = NewDomainError(CodeStoreWriteFailure, "Local store write failed")
	ErrValidationFailed  = NewDomainError(CodeValidationFailed, "Validation failed")
	ErrSyncInProgress    = NewDomainError(CodeSyncInProgress, "A synchronization for this entity type is already running")
	ErrInvalidPeriod     = NewDomainError(CodeInvalidPeriod, "Period must be in YYYY-MM format")
)

// SourceUnavailable wraps a failure talking to the external ledger
func SourceUnavailable(cause error) error {
	return WrapDomainError(CodeSourceUnavailable, "Ledger source unavailable", cause)
}

// StoreWriteFailure wraps a failure writing the local store
func StoreWriteFailure(cause error) error {
	return WrapDomainError(CodeStoreWriteFailure, "Local store write failed", cause)
}

// ValidationFailed builds a validation error with a specific message
func ValidationFailed(message string) error {
	return NewDomainError(CodeValidationFailed, message)
}
