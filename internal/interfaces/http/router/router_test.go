package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/finsync/backend/internal/interfaces/http/dto"
	"github.com/finsync/backend/internal/interfaces/http/handler"
	"github.com/finsync/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestDomainGroup(t *testing.T) {
	engine := gin.New()
	var order []string
	group := NewDomainGroup("sync", "/sync").
		Use(func(c *gin.Context) { order = append(order, "mw"); c.Next() }).
		GET("/status", func(c *gin.Context) { order = append(order, "get"); c.Status(http.StatusOK) }).
		POST("/all", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	assert.Equal(t, "sync", group.Name())
	assert.Equal(t, "/sync", group.Prefix())

	NewRouter(engine, WithAPIVersion("v2")).Register(group).Setup()

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/v2/sync/status", http.StatusOK},
		{http.MethodPost, "/api/v2/sync/all", http.StatusAccepted},
		{http.MethodGet, "/api/v1/sync/status", http.StatusNotFound},
		{http.MethodGet, "/sync/status", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.status, w.Code, "%s %s", tt.method, tt.path)
	}
	assert.Equal(t, []string{"mw", "get"}, order)
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newTestEngine(t *testing.T, cfg EngineConfig) *gin.Engine {
	t.Helper()
	engine, err := NewEngine(cfg, Handlers{
		Health:         handler.NewHealthHandler(okPinger{}),
		Sync:           handler.NewSyncHandler(nil),
		Dashboard:      handler.NewDashboardHandler(nil),
		CardReceivable: handler.NewCardReceivableHandler(nil, 0),
	}, zap.NewNop())
	require.NoError(t, err)
	return engine
}

func TestNewEngine_Routes(t *testing.T) {
	engine := newTestEngine(t, EngineConfig{ServiceName: "finsync"})

	registered := map[string]bool{}
	for _, r := range engine.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	expected := []string{
		"GET /health",
		"POST /api/v1/sync/receivables",
		"POST /api/v1/sync/payables",
		"POST /api/v1/sync/reference-data",
		"POST /api/v1/sync/all",
		"POST /api/v1/sync/jobs",
		"GET /api/v1/sync/status",
		"GET /api/v1/sync/history",
		"GET /api/v1/dashboard/summary",
		"GET /api/v1/dashboard/daily",
		"GET /api/v1/dashboard/cash-flow",
		"GET /api/v1/dashboard/projected-daily",
		"GET /api/v1/dashboard/monthly",
		"GET /api/v1/dashboard/top-expenses",
		"GET /api/v1/dashboard/top-revenues",
		"GET /api/v1/dashboard/top-suppliers",
		"GET /api/v1/dashboard/top-clients",
		"GET /api/v1/dashboard/cost-centers",
		"GET /api/v1/dashboard/receivables/daily",
		"GET /api/v1/dashboard/receivables/settled",
		"GET /api/v1/dashboard/export",
		"POST /api/v1/card-receivables/upload",
		"PUT /api/v1/card-receivables",
		"DELETE /api/v1/card-receivables",
		"GET /api/v1/card-receivables/daily",
		"GET /api/v1/card-receivables/detail",
		"GET /api/v1/card-receivables/stats",
		"GET /api/v1/card-receivables/reconciliation",
	}
	for _, route := range expected {
		assert.True(t, registered[route], "missing route %s", route)
	}
	assert.Len(t, registered, len(expected))
}

func TestNewEngine_HealthAndNoRoute(t *testing.T) {
	engine := newTestEngine(t, EngineConfig{})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeRouteNotFound, resp.Error.Code)
	assert.NotEmpty(t, resp.RequestID)
}

func TestNewEngine_BodyLimit(t *testing.T) {
	engine := newTestEngine(t, EngineConfig{MaxBodySize: 16})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/card-receivables", strings.NewReader(strings.Repeat("x", 64)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestNewEngine_InvalidTrustedProxy(t *testing.T) {
	_, err := NewEngine(EngineConfig{TrustedProxies: []string{"not-an-ip"}}, Handlers{
		Health: handler.NewHealthHandler(okPinger{}),
	}, zap.NewNop())
	assert.Error(t, err)
}
