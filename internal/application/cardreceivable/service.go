// Package cardreceivable ingests card-acquirer settlement calendars and
// reconciles the projected amounts against what was actually received.
package cardreceivable

import (
	"context"
	"fmt"
	"time"

	"github.com/finsync/backend/internal/domain/cardreceivable"
	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/finsync/backend/internal/domain/shared"
	"github.com/finsync/backend/internal/infrastructure/logger"
	"github.com/finsync/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ManualUploader is recorded on entries created by hand
const ManualUploader = "manual"

// Extractor turns a calendar image into its JSON payload
type Extractor interface {
	Extract(ctx context.Context, image []byte, contentType string) ([]byte, error)
}

// ImageArchive keeps a copy of every uploaded image
type ImageArchive interface {
	Archive(ctx context.Context, month, merchant string, data []byte, contentType string) (string, error)
}

// Service is the card receivable application service
type Service struct {
	repo      cardreceivable.Repository
	extractor Extractor
	archive   ImageArchive
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithArchive stores uploaded images
func WithArchive(a ImageArchive) Option {
	return func(s *Service) { s.archive = a }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the fallback logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates the service. Without an extractor uploads are rejected.
func NewService(repo cardreceivable.Repository, extractor Extractor, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		extractor: extractor,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload processes a batch of calendar images. Each image is extracted,
// validated and replaces the stored rows of its month and merchant; a failing
// image or entry is reported without aborting the others.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if s.extractor == nil {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "calendar extraction is not configured")
	}
	if len(req.Images) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "no images uploaded")
	}
	status := req.Status
	if status == "" {
		status = cardreceivable.StatusProjected
	}
	uploadedBy := req.UploadedBy
	if uploadedBy == "" {
		uploadedBy = "system"
	}

	ctx, span := telemetry.StartSpan(ctx, "cardreceivable.upload",
		attribute.Int("images", len(req.Images)), attribute.String("status", string(status)))
	defer span.End()

	result := &UploadResult{TotalImages: len(req.Images), Errors: []UploadError{}, Items: []ImageResult{}}
	for i, img := range req.Images {
		item, errs := s.processImage(ctx, i, img, status, uploadedBy)
		result.Items = append(result.Items, item)
		result.Errors = append(result.Errors, errs...)
		result.TotalInserted += item.RowsInserted
	}
	result.Success = len(result.Errors) == 0 || result.TotalInserted > 0
	if !result.Success {
		span.SetAttributes(attribute.Int("errors", len(result.Errors)))
	}

	s.log(ctx).Info("card calendar batch processed",
		zap.Int("images", result.TotalImages),
		zap.Int("rows_inserted", result.TotalInserted),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

func (s *Service) processImage(ctx context.Context, index int, img Image, status cardreceivable.Status, uploadedBy string) (ImageResult, []UploadError) {
	item := ImageResult{Image: index, Name: img.Name}
	fail := func(err error) (ImageResult, []UploadError) {
		s.log(ctx).Warn("card calendar image rejected", zap.Int("image", index), zap.Error(err))
		return item, []UploadError{{Image: index, MerchantCode: item.MerchantCode, Message: err.Error()}}
	}

	raw, err := s.extractor.Extract(ctx, img.Data, img.ContentType)
	if err != nil {
		return fail(err)
	}
	cal, err := cardreceivable.ParseCalendar(raw)
	if err != nil {
		return fail(err)
	}
	item.ReferenceMonth = cal.ReferenceMonth
	item.MerchantCode = cal.MerchantCode

	rows, entryErrs := cal.Records(status, uploadedBy, s.now().UTC())
	var errs []UploadError
	for _, e := range entryErrs {
		errs = append(errs, UploadError{Image: index, MerchantCode: cal.MerchantCode, Date: e.Date, Message: e.Err.Error()})
	}
	if len(rows) == 0 {
		// keep what is stored rather than replacing it with nothing
		errs = append(errs, UploadError{Image: index, MerchantCode: cal.MerchantCode, Message: "calendar has no valid entries"})
		return item, errs
	}

	if s.archive != nil {
		key, err := s.archive.Archive(ctx, cal.ReferenceMonth, cal.MerchantCode, img.Data, img.ContentType)
		if err != nil {
			s.log(ctx).Warn("card calendar image not archived", zap.Int("image", index), zap.Error(err))
		}
		item.ImageKey = key
		for i := range rows {
			rows[i].ImageKey = key
		}
	}

	replaced, err := s.repo.ReplaceMonth(ctx, cal.ReferenceMonth, cal.MerchantCode, rows)
	if err != nil {
		_, failed := fail(err)
		return item, append(errs, failed...)
	}
	item.Success = true
	item.RowsInserted = len(rows)
	item.RowsReplaced = replaced
	return item, errs
}

// RecordManual upserts one amount by its natural key. Status defaults to
// received.
func (s *Service) RecordManual(ctx context.Context, req ManualEntryRequest) (*ManualEntryResponse, error) {
	if _, err := ledger.ParsePeriod(req.ReferenceMonth); err != nil {
		return nil, err
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "date must be YYYY-MM-DD")
	}
	if req.MerchantCode == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "merchant_code is required")
	}
	status := cardreceivable.StatusReceived
	if req.Status != "" {
		if status, err = cardreceivable.ParseStatus(req.Status); err != nil {
			return nil, err
		}
	}
	uploadedBy := req.UploadedBy
	if uploadedBy == "" {
		uploadedBy = ManualUploader
	}

	row := &cardreceivable.CardReceivable{
		ID:              uuid.New(),
		RecognitionDate: date,
		Amount:          decimal.NewFromFloat(req.Amount),
		MerchantCode:    req.MerchantCode,
		ReferenceMonth:  req.ReferenceMonth,
		Status:          status,
		UploadedBy:      uploadedBy,
		UploadedAt:      s.now().UTC(),
	}
	created, err := s.repo.Upsert(ctx, row)
	if err != nil {
		return nil, err
	}
	return &ManualEntryResponse{
		Created:        created,
		Date:           req.Date,
		Amount:         row.Amount.Round(2).InexactFloat64(),
		MerchantCode:   row.MerchantCode,
		ReferenceMonth: row.ReferenceMonth,
		Status:         string(row.Status),
	}, nil
}

// DailyTotals sums the amounts per recognition date within a date range
func (s *Service) DailyTotals(ctx context.Context, q DailyTotalsQuery) ([]DailyTotalResponse, error) {
	from, err := time.Parse(time.DateOnly, q.From)
	if err != nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "from must be YYYY-MM-DD")
	}
	to, err := time.Parse(time.DateOnly, q.To)
	if err != nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "to must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "to must not be before from")
	}
	status, err := cardreceivable.ParseStatus(q.Status)
	if err != nil {
		return nil, err
	}

	totals, err := s.repo.DailyTotals(ctx, cardreceivable.Filter{From: from, To: to, Merchants: q.Merchants, Status: status})
	if err != nil {
		return nil, err
	}
	out := make([]DailyTotalResponse, len(totals))
	for i, t := range totals {
		out[i] = DailyTotalResponse{Date: t.Date.Format(time.DateOnly), Total: t.Total.Round(2).InexactFloat64()}
	}
	return out, nil
}

// MonthDetail lists the stored rows of a reference month
func (s *Service) MonthDetail(ctx context.Context, month string) ([]EntryResponse, error) {
	if _, err := ledger.ParsePeriod(month); err != nil {
		return nil, err
	}
	rows, err := s.repo.FindByMonth(ctx, month)
	if err != nil {
		return nil, err
	}
	out := make([]EntryResponse, len(rows))
	for i, r := range rows {
		out[i] = toEntryResponse(r)
	}
	return out, nil
}

// Stats summarizes the uploads of a reference month
func (s *Service) Stats(ctx context.Context, month string) (*StatsResponse, error) {
	if _, err := ledger.ParsePeriod(month); err != nil {
		return nil, err
	}
	st, err := s.repo.MonthStats(ctx, month)
	if err != nil {
		return nil, err
	}
	return &StatsResponse{
		ReferenceMonth: month,
		Records:        st.Records,
		Merchants:      st.Merchants,
		Total:          st.Total.Round(2).InexactFloat64(),
		Average:        st.Average.Round(2).InexactFloat64(),
		FirstUpload:    st.FirstUpload,
		LastUpload:     st.LastUpload,
	}, nil
}

// Reconcile compares, day by day, the projected and received amounts whose
// recognition date falls in the month.
func (s *Service) Reconcile(ctx context.Context, month string, merchants []string) (*ReconciliationResponse, error) {
	p, err := ledger.ParsePeriod(month)
	if err != nil {
		return nil, err
	}
	filter := cardreceivable.Filter{From: p.FirstDay(), To: p.LastDay(), Merchants: merchants}

	filter.Status = cardreceivable.StatusProjected
	projected, err := s.repo.DailyTotals(ctx, filter)
	if err != nil {
		return nil, err
	}
	filter.Status = cardreceivable.StatusReceived
	received, err := s.repo.DailyTotals(ctx, filter)
	if err != nil {
		return nil, err
	}

	byDay := make(map[time.Time]*[2]decimal.Decimal)
	for _, t := range projected {
		day := ledger.DateOnly(t.Date)
		if byDay[day] == nil {
			byDay[day] = &[2]decimal.Decimal{}
		}
		byDay[day][0] = byDay[day][0].Add(t.Total)
	}
	for _, t := range received {
		day := ledger.DateOnly(t.Date)
		if byDay[day] == nil {
			byDay[day] = &[2]decimal.Decimal{}
		}
		byDay[day][1] = byDay[day][1].Add(t.Total)
	}

	resp := &ReconciliationResponse{ReferenceMonth: month, Days: []ReconciliationDay{}}
	var totalProjected, totalReceived decimal.Decimal
	for d := p.FirstDay(); !d.After(p.LastDay()); d = d.AddDate(0, 0, 1) {
		v, ok := byDay[d]
		if !ok {
			continue
		}
		totalProjected = totalProjected.Add(v[0])
		totalReceived = totalReceived.Add(v[1])
		resp.Days = append(resp.Days, ReconciliationDay{
			Date:       d.Format(time.DateOnly),
			Projected:  v[0].Round(2).InexactFloat64(),
			Received:   v[1].Round(2).InexactFloat64(),
			Difference: v[1].Sub(v[0]).Round(2).InexactFloat64(),
		})
	}
	resp.Projected = totalProjected.Round(2).InexactFloat64()
	resp.Received = totalReceived.Round(2).InexactFloat64()
	resp.Difference = totalReceived.Sub(totalProjected).Round(2).InexactFloat64()
	return resp, nil
}

// DeleteMonth removes a month's rows, optionally for one merchant
func (s *Service) DeleteMonth(ctx context.Context, month, merchant string) (int64, error) {
	if _, err := ledger.ParsePeriod(month); err != nil {
		return 0, err
	}
	n, err := s.repo.DeleteMonth(ctx, month, merchant)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("no card receivables for %s", month))
	}
	s.log(ctx).Info("card receivables deleted",
		zap.String("reference_month", month), zap.String("merchant_code", merchant), zap.Int64("rows", n))
	return n, nil
}

func (s *Service) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, logger.FromContextOr(ctx, s.logger))
}
