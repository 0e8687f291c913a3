package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/finsync/backend/internal/application/ledgersync"
	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/finsync/backend/internal/domain/shared"
	"github.com/finsync/backend/internal/infrastructure/scheduler"
	"github.com/finsync/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// ExecutedByHeader names who triggered a synchronization
const ExecutedByHeader = "X-Executed-By"

// DefaultHistoryLimit is used when ?limit= is absent
const DefaultHistoryLimit = 20

// SyncService is the orchestrator as seen by the HTTP layer
type SyncService interface {
	SyncReceivables(ctx context.Context, period ledger.Period, executedBy string) (*ledgersync.Result, error)
	SyncPayables(ctx context.Context, period ledger.Period, executedBy string) (*ledgersync.Result, error)
	SyncReferenceData(ctx context.Context, executedBy string) (*ledgersync.Result, error)
	SyncAll(ctx context.Context, period ledger.Period, executedBy string) (*ledgersync.Result, error)
	LastStatus(ctx context.Context, entity *ledger.EntityType) (*ledgersync.RunResponse, error)
	History(ctx context.Context, limit int) ([]ledgersync.RunResponse, error)
}

// JobTrigger queues a synchronization on the background worker pool
type JobTrigger interface {
	TriggerManual(entity ledger.EntityType, period ledger.Period, executedBy string) (scheduler.Job, error)
}

// JobResponse describes a queued synchronization job
type JobResponse struct {
	JobID      string `json:"job_id"`
	EntityType string `json:"entity_type"`
	Period     string `json:"period"`
	Trigger    string `json:"trigger"`
	ExecutedBy string `json:"executed_by"`
	Status     string `json:"status"`
}

// SyncHandler exposes the synchronization operations
type SyncHandler struct {
	BaseHandler
	service    SyncService
	jobs       JobTrigger
	location   *time.Location
	now        func() time.Time
	executedBy string
}

// SyncHandlerOption configures a SyncHandler
type SyncHandlerOption func(*SyncHandler)

// WithSyncLocation sets the time zone that decides the current period
func WithSyncLocation(loc *time.Location) SyncHandlerOption {
	return func(h *SyncHandler) { h.location = loc }
}

// WithSyncClock replaces time.Now
func WithSyncClock(now func() time.Time) SyncHandlerOption {
	return func(h *SyncHandler) { h.now = now }
}

// WithDefaultExecutor is recorded when the caller does not identify itself
func WithDefaultExecutor(name string) SyncHandlerOption {
	return func(h *SyncHandler) { h.executedBy = name }
}

// WithJobTrigger enables POST /sync/jobs. Without it the route answers 503.
func WithJobTrigger(t JobTrigger) SyncHandlerOption {
	return func(h *SyncHandler) { h.jobs = t }
}

// NewSyncHandler creates a SyncHandler
func NewSyncHandler(service SyncService, opts ...SyncHandlerOption) *SyncHandler {
	h := &SyncHandler{
		service:    service,
		location:   time.UTC,
		now:        time.Now,
		executedBy: "system",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SyncReceivables handles POST /sync/receivables?period=YYYY-MM
func (h *SyncHandler) SyncReceivables(c *gin.Context) {
	period, ok := h.period(c)
	if !ok {
		return
	}
	res, err := h.service.SyncReceivables(c.Request.Context(), period, h.executor(c))
	h.respond(c, res, err)
}

// SyncPayables handles POST /sync/payables?period=YYYY-MM
func (h *SyncHandler) SyncPayables(c *gin.Context) {
	period, ok := h.period(c)
	if !ok {
		return
	}
	res, err := h.service.SyncPayables(c.Request.Context(), period, h.executor(c))
	h.respond(c, res, err)
}

// SyncReferenceData handles POST /sync/reference-data
func (h *SyncHandler) SyncReferenceData(c *gin.Context) {
	res, err := h.service.SyncReferenceData(c.Request.Context(), h.executor(c))
	h.respond(c, res, err)
}

// SyncAll handles POST /sync/all?period=YYYY-MM
func (h *SyncHandler) SyncAll(c *gin.Context) {
	period, ok := h.period(c)
	if !ok {
		return
	}
	res, err := h.service.SyncAll(c.Request.Context(), period, h.executor(c))
	h.respond(c, res, err)
}

// SubmitJob handles POST /sync/jobs?type=&period=. The job runs in the
// background; its run shows up in /sync/status and /sync/history.
func (h *SyncHandler) SubmitJob(c *gin.Context) {
	if h.jobs == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "the sync scheduler is disabled")
		return
	}
	entity := ledger.EntityAll
	if raw := c.Query("type"); raw != "" {
		et, err := ledger.ParseEntityType(raw)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		entity = et
	}
	period, ok := h.period(c)
	if !ok {
		return
	}

	job, err := h.jobs.TriggerManual(entity, period, h.executor(c))
	if err != nil {
		_ = c.Error(err)
		switch {
		case errors.Is(err, scheduler.ErrJobQueueFull):
			h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "the sync job queue is full")
		case errors.Is(err, scheduler.ErrSchedulerNotRunning):
			h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "the sync scheduler is not running")
		default:
			h.HandleError(c, err)
		}
		return
	}
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(JobResponse{
		JobID:      job.ID.String(),
		EntityType: string(job.EntityType),
		Period:     job.Period.String(),
		Trigger:    string(job.Trigger),
		ExecutedBy: job.ExecutedBy,
		Status:     string(job.Status),
	}))
}

// Status handles GET /sync/status?type=. Data is null when nothing ran yet.
func (h *SyncHandler) Status(c *gin.Context) {
	var entity *ledger.EntityType
	if raw := c.Query("type"); raw != "" {
		et, err := ledger.ParseEntityType(raw)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		entity = &et
	}
	run, err := h.service.LastStatus(c.Request.Context(), entity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, run)
}

// History handles GET /sync/history?limit=
func (h *SyncHandler) History(c *gin.Context) {
	var q dto.LimitQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = DefaultHistoryLimit
	}
	runs, err := h.service.History(c.Request.Context(), q.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, runs)
}

// period reads ?period=, defaulting to the current month
func (h *SyncHandler) period(c *gin.Context) (ledger.Period, bool) {
	raw := c.Query("period")
	if raw == "" {
		return ledger.PeriodOf(h.now().In(h.location)), true
	}
	p, err := ledger.ParsePeriod(raw)
	if err != nil {
		h.HandleError(c, err)
		return ledger.Period{}, false
	}
	return p, true
}

func (h *SyncHandler) executor(c *gin.Context) string {
	if by := c.GetHeader(ExecutedByHeader); by != "" {
		return by
	}
	return h.executedBy
}

// respond keeps the run result in the body of a failed synchronization so
// the caller sees the run id and the steps that did complete.
func (h *SyncHandler) respond(c *gin.Context, res *ledgersync.Result, err error) {
	if err == nil {
		h.Success(c, res)
		return
	}
	if res == nil {
		h.HandleError(c, err)
		return
	}
	_ = c.Error(err)

	code, status := dto.ErrCodeInternal, http.StatusInternalServerError
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code, status = domainErr.Code, dto.GetHTTPStatus(domainErr.Code)
	}
	resp := dto.NewErrorResponseWithRequestID(code, err.Error(), getRequestID(c))
	resp.Data = res
	c.JSON(status, resp)
}
