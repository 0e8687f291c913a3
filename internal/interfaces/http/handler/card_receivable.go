package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/finsync/backend/internal/application/cardreceivable"
	domain "github.com/finsync/backend/internal/domain/cardreceivable"
	"github.com/gin-gonic/gin"
)

// DefaultMaxUploadImages bounds one upload batch
const DefaultMaxUploadImages = 20

var imageContentTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/gif":  true,
}

// CardReceivableService is the card receivable service as seen by the HTTP layer
type CardReceivableService interface {
	Upload(ctx context.Context, req cardreceivable.UploadRequest) (*cardreceivable.UploadResult, error)
	RecordManual(ctx context.Context, req cardreceivable.ManualEntryRequest) (*cardreceivable.ManualEntryResponse, error)
	DailyTotals(ctx context.Context, q cardreceivable.DailyTotalsQuery) ([]cardreceivable.DailyTotalResponse, error)
	MonthDetail(ctx context.Context, month string) ([]cardreceivable.EntryResponse, error)
	Stats(ctx context.Context, month string) (*cardreceivable.StatsResponse, error)
	Reconcile(ctx context.Context, month string, merchants []string) (*cardreceivable.ReconciliationResponse, error)
	DeleteMonth(ctx context.Context, month, merchant string) (int64, error)
}

// CardReceivableHandler serves settlement calendar uploads and queries
type CardReceivableHandler struct {
	BaseHandler
	service   CardReceivableService
	maxImages int
}

// NewCardReceivableHandler creates a CardReceivableHandler. maxImages <= 0
// uses DefaultMaxUploadImages.
func NewCardReceivableHandler(service CardReceivableService, maxImages int) *CardReceivableHandler {
	if maxImages <= 0 {
		maxImages = DefaultMaxUploadImages
	}
	return &CardReceivableHandler{service: service, maxImages: maxImages}
}

type monthQuery struct {
	ReferenceMonth string `form:"reference_month" binding:"required,datetime=2006-01"`
	MerchantCode   string `form:"merchant_code"`
}

// Upload handles POST /card-receivables/upload (multipart, field "images")
func (h *CardReceivableHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.BadRequest(c, "expected a multipart form with calendar images")
		return
	}
	files := form.File["images"]
	switch {
	case len(files) == 0:
		h.BadRequest(c, "no images uploaded")
		return
	case len(files) > h.maxImages:
		h.BadRequest(c, fmt.Sprintf("at most %d images per upload", h.maxImages))
		return
	}

	status, err := domain.ParseStatus(c.PostForm("status"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	req := cardreceivable.UploadRequest{
		Images:     make([]cardreceivable.Image, 0, len(files)),
		Status:     status,
		UploadedBy: c.PostForm("uploaded_by"),
	}
	for _, fh := range files {
		img, err := readImage(fh)
		if err != nil {
			h.BadRequest(c, err.Error())
			return
		}
		req.Images = append(req.Images, img)
	}

	res, err := h.service.Upload(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

func readImage(fh *multipart.FileHeader) (cardreceivable.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return cardreceivable.Image{}, fmt.Errorf("%s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return cardreceivable.Image{}, fmt.Errorf("%s: %w", fh.Filename, err)
	}

	contentType := fh.Header.Get("Content-Type")
	if !imageContentTypes[contentType] {
		contentType = http.DetectContentType(data)
	}
	if !imageContentTypes[contentType] {
		return cardreceivable.Image{}, fmt.Errorf("%s is not a PNG, JPEG, WEBP or GIF image", fh.Filename)
	}
	return cardreceivable.Image{Name: fh.Filename, ContentType: contentType, Data: data}, nil
}

// RecordManual handles PUT /card-receivables
func (h *CardReceivableHandler) RecordManual(c *gin.Context) {
	var req cardreceivable.ManualEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.UploadedBy = c.GetHeader(ExecutedByHeader)

	res, err := h.service.RecordManual(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if res.Created {
		h.Created(c, res)
		return
	}
	h.Success(c, res)
}

// Daily handles GET /card-receivables/daily?from=&to=&merchant_codes=&status=
func (h *CardReceivableHandler) Daily(c *gin.Context) {
	var q cardreceivable.DailyTotalsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	q.Merchants = parseStringList(c.Query("merchant_codes"))

	totals, err := h.service.DailyTotals(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, totals)
}

// Detail handles GET /card-receivables/detail?reference_month=
func (h *CardReceivableHandler) Detail(c *gin.Context) {
	q, ok := h.month(c)
	if !ok {
		return
	}
	rows, err := h.service.MonthDetail(c.Request.Context(), q.ReferenceMonth)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

// Stats handles GET /card-receivables/stats?reference_month=
func (h *CardReceivableHandler) Stats(c *gin.Context) {
	q, ok := h.month(c)
	if !ok {
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), q.ReferenceMonth)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// Reconciliation handles GET /card-receivables/reconciliation?reference_month=&merchant_codes=
func (h *CardReceivableHandler) Reconciliation(c *gin.Context) {
	q, ok := h.month(c)
	if !ok {
		return
	}
	res, err := h.service.Reconcile(c.Request.Context(), q.ReferenceMonth, parseStringList(c.Query("merchant_codes")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

// Delete handles DELETE /card-receivables?reference_month=&merchant_code=
func (h *CardReceivableHandler) Delete(c *gin.Context) {
	q, ok := h.month(c)
	if !ok {
		return
	}
	n, err := h.service.DeleteMonth(c.Request.Context(), q.ReferenceMonth, strings.TrimSpace(q.MerchantCode))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"rows_deleted": n})
}

func (h *CardReceivableHandler) month(c *gin.Context) (monthQuery, bool) {
	var q monthQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return q, false
	}
	return q, true
}
