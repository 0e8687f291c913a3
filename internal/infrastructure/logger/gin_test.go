package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGinMiddleware(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(GinRequestIDKey, "req-42"); c.Next() })
	r.Use(GinMiddleware(zap.New(core)))

	var seenRequestID string
	r.GET("/sync/status", func(c *gin.Context) {
		seenRequestID = GetRequestID(c.Request.Context())
		L(c.Request.Context()).Info("inside handler")
		c.Status(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/status?type=payables", nil))

	assert.Equal(t, "req-42", seenRequestID)
	require.Equal(t, 2, recorded.Len())
	handlerEntry := recorded.All()[0]
	assert.Equal(t, "req-42", handlerEntry.ContextMap()["request_id"])

	access := recorded.All()[1]
	assert.Equal(t, zapcore.WarnLevel, access.Level)
	assert.Equal(t, int64(http.StatusNotFound), access.ContextMap()["status"])
	assert.Equal(t, "type=payables", access.ContextMap()["query"])
}

func TestRecovery(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(Recovery(zap.New(core)))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "Panic recovered", recorded.All()[0].Message)
}
