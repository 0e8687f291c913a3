package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/finsync/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Pinger checks one dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness and the state of the local store
type HealthHandler struct {
	BaseHandler
	store     Pinger
	startTime time.Time
	timeout   time.Duration
}

// NewHealthHandler creates a HealthHandler
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{
		store:     store,
		startTime: time.Now(),
		timeout:   3 * time.Second,
	}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health handles GET /health. A store that does not answer turns it into 503.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "ok",
		Database:  "ok",
		Version:   Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		_ = c.Error(err)
		resp.Status = "degraded"
		resp.Database = "unreachable"
		body := dto.NewErrorResponseWithRequestID(dto.ErrCodeUnavailable, "local store unreachable", getRequestID(c))
		body.Data = resp
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	h.Success(c, resp)
}
