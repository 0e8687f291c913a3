package dto

import (
	"net/http"

	"github.com/finsync/backend/internal/domain/shared"
)

// Transport-level error codes. Domain codes from the shared package are
// passed through unchanged.
const (
	// ErrCodeInternal is used for unexpected server errors
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeRouteNotFound is used when no route matches
	ErrCodeRouteNotFound = "ROUTE_NOT_FOUND"
	// ErrCodePayloadTooLarge is used when the body exceeds the configured limit
	ErrCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	// ErrCodeUnavailable is used when a dependency is down
	ErrCodeUnavailable = "SERVICE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeRouteNotFound:   http.StatusNotFound,
	ErrCodePayloadTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeUnavailable:     http.StatusServiceUnavailable,

	shared.CodeNotFound:          http.StatusNotFound,
	shared.CodeInvalidInput:      http.StatusBadRequest,
	shared.CodeInvalidPeriod:     http.StatusBadRequest,
	shared.CodeValidationFailed:  http.StatusUnprocessableEntity,
	shared.CodeInvalidState:      http.StatusConflict,
	shared.CodeSyncInProgress:    http.StatusConflict,
	shared.CodeSourceUnavailable: http.StatusBadGateway,
	shared.CodeStoreWriteFailure: http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
