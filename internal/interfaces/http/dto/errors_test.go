package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/finsync/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeRouteNotFound, http.StatusNotFound},
		{ErrCodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{shared.CodeNotFound, http.StatusNotFound},
		{shared.CodeInvalidInput, http.StatusBadRequest},
		{shared.CodeInvalidPeriod, http.StatusBadRequest},
		{shared.CodeValidationFailed, http.StatusUnprocessableEntity},
		{shared.CodeSyncInProgress, http.StatusConflict},
		{shared.CodeSourceUnavailable, http.StatusBadGateway},
		{shared.CodeStoreWriteFailure, http.StatusInternalServerError},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestErrorResponseJSON(t *testing.T) {
	body, err := json.Marshal(NewErrorResponseWithRequestID(shared.CodeSyncInProgress, "busy", "req-1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"data":null,"error":{"code":"SYNC_IN_PROGRESS","message":"busy"},"request_id":"req-1"}`, string(body))

	body, err = json.Marshal(NewSuccessResponse(map[string]int{"rows": 3}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":{"rows":3}}`, string(body))
}
