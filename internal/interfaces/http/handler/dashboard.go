package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/finsync/backend/internal/application/dashboard"
	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DashboardService is the aggregation service as seen by the HTTP layer
type DashboardService interface {
	Today() time.Time
	Summary(ctx context.Context, q dashboard.Query) (*dashboard.SummaryResponse, error)
	Daily(ctx context.Context, q dashboard.Query) ([]dashboard.DailyPoint, error)
	CashFlow(ctx context.Context, q dashboard.Query) ([]dashboard.CashFlowPoint, error)
	ProjectedDaily(ctx context.Context, q dashboard.Query) ([]dashboard.ProjectedDay, error)
	Monthly(ctx context.Context, q dashboard.Query) ([]dashboard.MonthlyPoint, error)
	TopExpenses(ctx context.Context, q dashboard.Query) ([]dashboard.RankingItem, error)
	TopRevenues(ctx context.Context, q dashboard.Query) ([]dashboard.RankingItem, error)
	TopSuppliers(ctx context.Context, q dashboard.Query) ([]dashboard.RankingItem, error)
	TopClients(ctx context.Context, q dashboard.Query) ([]dashboard.RankingItem, error)
	CostCenters(ctx context.Context, q dashboard.Query) ([]dashboard.RankingItem, error)
	ReceivablesByDay(ctx context.Context, period ledger.Period, branches []int) ([]dashboard.DaySummary, error)
	SettledByDay(ctx context.Context, period ledger.Period, branches []int) ([]dashboard.DaySummary, error)
	Export(ctx context.Context, q dashboard.Query, w io.Writer) error
	ExportFilename(q dashboard.Query) string
}

// DashboardHandler serves the read-only financial views
type DashboardHandler struct {
	BaseHandler
	service DashboardService
}

// NewDashboardHandler creates a DashboardHandler
func NewDashboardHandler(service DashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Summary handles GET /dashboard/summary
func (h *DashboardHandler) Summary(c *gin.Context) { serveQuery(h, c, h.service.Summary) }

// Daily handles GET /dashboard/daily
func (h *DashboardHandler) Daily(c *gin.Context) { serveQuery(h, c, h.service.Daily) }

// CashFlow handles GET /dashboard/cash-flow
func (h *DashboardHandler) CashFlow(c *gin.Context) { serveQuery(h, c, h.service.CashFlow) }

// ProjectedDaily handles GET /dashboard/projected-daily
func (h *DashboardHandler) ProjectedDaily(c *gin.Context) { serveQuery(h, c, h.service.ProjectedDaily) }

// Monthly handles GET /dashboard/monthly
func (h *DashboardHandler) Monthly(c *gin.Context) { serveQuery(h, c, h.service.Monthly) }

// TopExpenses handles GET /dashboard/top-expenses
func (h *DashboardHandler) TopExpenses(c *gin.Context) { serveQuery(h, c, h.service.TopExpenses) }

// TopRevenues handles GET /dashboard/top-revenues
func (h *DashboardHandler) TopRevenues(c *gin.Context) { serveQuery(h, c, h.service.TopRevenues) }

// TopSuppliers handles GET /dashboard/top-suppliers
func (h *DashboardHandler) TopSuppliers(c *gin.Context) { serveQuery(h, c, h.service.TopSuppliers) }

// TopClients handles GET /dashboard/top-clients
func (h *DashboardHandler) TopClients(c *gin.Context) { serveQuery(h, c, h.service.TopClients) }

// CostCenters handles GET /dashboard/cost-centers
func (h *DashboardHandler) CostCenters(c *gin.Context) { serveQuery(h, c, h.service.CostCenters) }

// ReceivablesDaily handles GET /dashboard/receivables/daily?period=YYYY-MM
func (h *DashboardHandler) ReceivablesDaily(c *gin.Context) {
	h.servePeriod(c, h.service.ReceivablesByDay)
}

// ReceivablesSettled handles GET /dashboard/receivables/settled?period=YYYY-MM
func (h *DashboardHandler) ReceivablesSettled(c *gin.Context) {
	h.servePeriod(c, h.service.SettledByDay)
}

// Export handles GET /dashboard/export and downloads an xlsx workbook
func (h *DashboardHandler) Export(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	// buffered so a failure can still be reported as JSON
	var buf bytes.Buffer
	if err := h.service.Export(c.Request.Context(), q, &buf); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+h.service.ExportFilename(q)+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func serveQuery[T any](h *DashboardHandler, c *gin.Context, fn func(context.Context, dashboard.Query) (T, error)) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	data, err := fn(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, data)
}

func (h *DashboardHandler) servePeriod(c *gin.Context, fn func(context.Context, ledger.Period, []int) ([]dashboard.DaySummary, error)) {
	period := ledger.PeriodOf(h.service.Today())
	if raw := c.Query("period"); raw != "" {
		p, err := ledger.ParsePeriod(raw)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		period = p
	}
	branches, err := parseIntList(c.Query("filiais"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	data, err := fn(c.Request.Context(), period, branches)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, data)
}

// query binds periodo, limit and the comma separated filiais list
func (h *DashboardHandler) query(c *gin.Context) (dashboard.Query, bool) {
	var q dashboard.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return q, false
	}
	branches, err := parseIntList(c.Query("filiais"))
	if err != nil {
		h.HandleError(c, err)
		return q, false
	}
	q.Branches = branches
	return q, true
}
