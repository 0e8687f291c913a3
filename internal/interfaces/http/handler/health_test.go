package handler

import (
	"context"
	"net/http"
	"runtime"
	"testing"

	"github.com/finsync/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name     string
		ping     error
		status   int
		health   string
		database string
	}{
		{"store reachable", nil, http.StatusOK, "ok", "ok"},
		{"store down", assert.AnError, http.StatusServiceUnavailable, "degraded", "unreachable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(pingerFunc(func(ctx context.Context) error {
				_, hasDeadline := ctx.Deadline()
				assert.True(t, hasDeadline)
				return tt.ping
			}))

			w, resp := serve(t, http.MethodGet, "/health", nil, "", func(r *gin.Engine) {
				r.GET("/health", h.Health)
			})

			assert.Equal(t, tt.status, w.Code)
			var body HealthResponse
			decodeData(t, resp, &body)
			assert.Equal(t, tt.health, body.Status)
			assert.Equal(t, tt.database, body.Database)
			assert.Equal(t, Version, body.Version)
			assert.Equal(t, runtime.Version(), body.GoVersion)
			if tt.ping != nil {
				assert.Equal(t, dto.ErrCodeUnavailable, resp.Error.Code)
			}
		})
	}
}
