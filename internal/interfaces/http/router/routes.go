package router

import (
	"net/http"

	"github.com/finsync/backend/internal/infrastructure/logger"
	"github.com/finsync/backend/internal/interfaces/http/dto"
	"github.com/finsync/backend/internal/interfaces/http/handler"
	"github.com/finsync/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Handlers are the endpoints served by the API
type Handlers struct {
	Health         *handler.HealthHandler
	Sync           *handler.SyncHandler
	Dashboard      *handler.DashboardHandler
	CardReceivable *handler.CardReceivableHandler
}

// EngineConfig controls the middleware chain
type EngineConfig struct {
	ServiceName    string
	TracingEnabled bool
	Meter          metric.Meter
	MaxBodySize    int64
	CORS           middleware.CORSConfig
	TrustedProxies []string
}

// NewEngine builds the gin engine with the middleware chain and every route
func NewEngine(cfg EngineConfig, h Handlers, log *zap.Logger) (*gin.Engine, error) {
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.TracingEnabled}),
		middleware.SpanAttributes(),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORSWithConfig(cfg.CORS),
	)
	if cfg.Meter != nil {
		engine.Use(middleware.HTTPMetrics(cfg.Meter, log))
	}
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(dto.ErrCodeRouteNotFound,
			"route not found", c.GetString(middleware.RequestIDKey)))
	})

	engine.GET("/health", h.Health.Health)

	NewRouter(engine).Register(routeGroups(h)...).Setup()
	return engine, nil
}

func routeGroups(h Handlers) []RouteRegistrar {
	sync := NewDomainGroup("sync", "/sync").
		POST("/receivables", h.Sync.SyncReceivables).
		POST("/payables", h.Sync.SyncPayables).
		POST("/reference-data", h.Sync.SyncReferenceData).
		POST("/all", h.Sync.SyncAll).
		POST("/jobs", h.Sync.SubmitJob).
		GET("/status", h.Sync.Status).
		GET("/history", h.Sync.History)

	dashboard := NewDomainGroup("dashboard", "/dashboard").
		GET("/summary", h.Dashboard.Summary).
		GET("/daily", h.Dashboard.Daily).
		GET("/cash-flow", h.Dashboard.CashFlow).
		GET("/projected-daily", h.Dashboard.ProjectedDaily).
		GET("/monthly", h.Dashboard.Monthly).
		GET("/top-expenses", h.Dashboard.TopExpenses).
		GET("/top-revenues", h.Dashboard.TopRevenues).
		GET("/top-suppliers", h.Dashboard.TopSuppliers).
		GET("/top-clients", h.Dashboard.TopClients).
		GET("/cost-centers", h.Dashboard.CostCenters).
		GET("/receivables/daily", h.Dashboard.ReceivablesDaily).
		GET("/receivables/settled", h.Dashboard.ReceivablesSettled).
		GET("/export", h.Dashboard.Export)

	cards := NewDomainGroup("card-receivables", "/card-receivables").
		POST("/upload", h.CardReceivable.Upload).
		PUT("", h.CardReceivable.RecordManual).
		DELETE("", h.CardReceivable.Delete).
		GET("/daily", h.CardReceivable.Daily).
		GET("/detail", h.CardReceivable.Detail).
		GET("/stats", h.CardReceivable.Stats).
		GET("/reconciliation", h.CardReceivable.Reconciliation)

	return []RouteRegistrar{sync, dashboard, cards}
}
