package cardreceivable

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/finsync/backend/internal/domain/cardreceivable"
	"github.com/finsync/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, image []byte, contentType string) ([]byte, error) {
	args := m.Called(ctx, image, contentType)
	raw, _ := args.Get(0).([]byte)
	return raw, args.Error(1)
}

type fakeArchive struct {
	keys []string
	err  error
}

func (a *fakeArchive) Archive(_ context.Context, month, merchant string, _ []byte, _ string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	key := "calendars/" + month + "/" + merchant + "/img.png"
	a.keys = append(a.keys, key)
	return key, nil
}

// memRepo keeps rows in memory with the repository's natural-key semantics
type memRepo struct {
	rows       []cardreceivable.CardReceivable
	replaceErr error
}

func (r *memRepo) ReplaceMonth(_ context.Context, month, merchant string, rows []cardreceivable.CardReceivable) (int64, error) {
	if r.replaceErr != nil {
		return 0, shared.StoreWriteFailure(r.replaceErr)
	}
	keys := map[cardreceivable.Key]bool{}
	for _, row := range rows {
		if keys[row.Key()] {
			return 0, shared.StoreWriteFailure(errors.New("duplicate key value violates unique constraint"))
		}
		keys[row.Key()] = true
	}
	deleted, _ := r.DeleteMonth(context.Background(), month, merchant)
	r.rows = append(r.rows, rows...)
	return deleted, nil
}

func (r *memRepo) Upsert(_ context.Context, row *cardreceivable.CardReceivable) (bool, error) {
	for i := range r.rows {
		if r.rows[i].Key() == row.Key() {
			r.rows[i].Amount = row.Amount
			r.rows[i].UploadedBy = row.UploadedBy
			r.rows[i].UploadedAt = row.UploadedAt
			return false, nil
		}
	}
	r.rows = append(r.rows, *row)
	return true, nil
}

func (r *memRepo) DeleteMonth(_ context.Context, month, merchant string) (int64, error) {
	kept := r.rows[:0:0]
	for _, row := range r.rows {
		if row.ReferenceMonth == month && (merchant == "" || row.MerchantCode == merchant) {
			continue
		}
		kept = append(kept, row)
	}
	n := int64(len(r.rows) - len(kept))
	r.rows = kept
	return n, nil
}

func (r *memRepo) DailyTotals(_ context.Context, f cardreceivable.Filter) ([]cardreceivable.DailyTotal, error) {
	totals := map[time.Time]decimal.Decimal{}
	for _, row := range r.rows {
		if row.Status != f.Status || row.RecognitionDate.Before(f.From) || row.RecognitionDate.After(f.To) {
			continue
		}
		if len(f.Merchants) > 0 && !slices.Contains(f.Merchants, row.MerchantCode) {
			continue
		}
		totals[row.RecognitionDate] = totals[row.RecognitionDate].Add(row.Amount)
	}
	out := make([]cardreceivable.DailyTotal, 0, len(totals))
	for d, t := range totals {
		out = append(out, cardreceivable.DailyTotal{Date: d, Total: t})
	}
	slices.SortFunc(out, func(a, b cardreceivable.DailyTotal) int { return a.Date.Compare(b.Date) })
	return out, nil
}

func (r *memRepo) FindByMonth(_ context.Context, month string) ([]cardreceivable.CardReceivable, error) {
	var out []cardreceivable.CardReceivable
	for _, row := range r.rows {
		if row.ReferenceMonth == month {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *memRepo) MonthStats(ctx context.Context, month string) (*cardreceivable.MonthStats, error) {
	rows, _ := r.FindByMonth(ctx, month)
	st := &cardreceivable.MonthStats{Records: int64(len(rows))}
	seen := map[string]bool{}
	for _, row := range rows {
		st.Total = st.Total.Add(row.Amount)
		if !seen[row.MerchantCode] {
			seen[row.MerchantCode] = true
			st.Merchants++
		}
	}
	if st.Records > 0 {
		st.Average = st.Total.Div(decimal.NewFromInt(st.Records))
	}
	return st, nil
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService(repo *memRepo, ext Extractor, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewService(repo, ext, opts...)
}

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

const calendarA = "```json\n" + `{"reference_month":"2025-06","merchant_code":"1020","entries":[` +
	`{"date":"2025-06-02","amount":150.50},{"date":"2025-06-03","amount":"oops"},{"date":"2025-06-04","amount":49.50}]}` + "\n```"

const calendarB = `{"reference_month":"2025-06","merchant_code":"2030","entries":[{"date":"2025-06-02","amount":10}]}`

func TestService_Upload_PartialFailures(t *testing.T) {
	repo := &memRepo{rows: []cardreceivable.CardReceivable{
		{RecognitionDate: d(2025, 6, 9), Amount: decimal.NewFromInt(1), MerchantCode: "1020", ReferenceMonth: "2025-06", Status: cardreceivable.StatusProjected},
	}}
	ext := new(mockExtractor)
	ext.On("Extract", mock.Anything, []byte("a"), "image/png").Return([]byte(calendarA), nil)
	ext.On("Extract", mock.Anything, []byte("b"), "image/png").Return(nil, shared.SourceUnavailable(errors.New("rate limited")))
	ext.On("Extract", mock.Anything, []byte("c"), "image/jpeg").Return([]byte(calendarB), nil)
	archive := &fakeArchive{}
	svc := newTestService(repo, ext, WithArchive(archive))

	res, err := svc.Upload(context.Background(), UploadRequest{
		Images: []Image{
			{Name: "a.png", ContentType: "image/png", Data: []byte("a")},
			{Name: "b.png", ContentType: "image/png", Data: []byte("b")},
			{Name: "c.jpg", ContentType: "image/jpeg", Data: []byte("c")},
		},
		UploadedBy: "ana",
	})
	require.NoError(t, err)

	assert.True(t, res.Success, "rows were inserted despite errors")
	assert.Equal(t, 3, res.TotalImages)
	assert.Equal(t, 3, res.TotalInserted)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "2025-06-03", res.Errors[0].Date)
	assert.Equal(t, 1, res.Errors[1].Image)
	assert.Contains(t, res.Errors[1].Message, "rate limited")

	require.Len(t, res.Items, 3)
	assert.Equal(t, ImageResult{
		Image: 0, Name: "a.png", Success: true, ReferenceMonth: "2025-06", MerchantCode: "1020",
		RowsInserted: 2, RowsReplaced: 1, ImageKey: "calendars/2025-06/1020/img.png",
	}, res.Items[0])
	assert.False(t, res.Items[1].Success)
	assert.True(t, res.Items[2].Success)

	stored, _ := repo.FindByMonth(context.Background(), "2025-06")
	require.Len(t, stored, 3)
	for _, row := range stored {
		assert.Equal(t, cardreceivable.StatusProjected, row.Status)
		assert.Equal(t, "ana", row.UploadedBy)
		assert.Equal(t, testNow, row.UploadedAt)
	}
	ext.AssertExpectations(t)
}

func TestService_Upload_AllFailed(t *testing.T) {
	ext := new(mockExtractor)
	ext.On("Extract", mock.Anything, mock.Anything, mock.Anything).Return([]byte(`{"merchant_code":"1"}`), nil)
	svc := newTestService(&memRepo{}, ext)

	res, err := svc.Upload(context.Background(), UploadRequest{Images: []Image{{Data: []byte("x")}}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Zero(t, res.TotalInserted)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "ReferenceMonth")
}

func TestService_Upload_NoValidEntriesKeepsStoredRows(t *testing.T) {
	repo := &memRepo{rows: []cardreceivable.CardReceivable{
		{RecognitionDate: d(2025, 6, 2), Amount: decimal.NewFromInt(5), MerchantCode: "2030", ReferenceMonth: "2025-06", Status: cardreceivable.StatusProjected},
	}}
	ext := new(mockExtractor)
	ext.On("Extract", mock.Anything, mock.Anything, mock.Anything).
		Return([]byte(`{"reference_month":"2025-06","merchant_code":"2030","entries":[{"date":"2025-06-31","amount":1}]}`), nil)
	svc := newTestService(repo, ext)

	res, err := svc.Upload(context.Background(), UploadRequest{Images: []Image{{Data: []byte("x")}}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Len(t, res.Errors, 2)
	assert.Len(t, repo.rows, 1)
}

func TestService_Upload_StoreFailureAndArchiveFailure(t *testing.T) {
	ext := new(mockExtractor)
	ext.On("Extract", mock.Anything, mock.Anything, mock.Anything).Return([]byte(calendarB), nil)
	svc := newTestService(&memRepo{replaceErr: errors.New("disk full")}, ext,
		WithArchive(&fakeArchive{err: errors.New("bucket gone")}))

	res, err := svc.Upload(context.Background(), UploadRequest{Images: []Image{{Data: []byte("x")}}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "2030", res.Errors[0].MerchantCode)
	assert.Contains(t, res.Errors[0].Message, "disk full")
	assert.Empty(t, res.Items[0].ImageKey)
}

func TestService_Upload_Rejected(t *testing.T) {
	_, err := NewService(&memRepo{}, nil).Upload(context.Background(), UploadRequest{Images: []Image{{}}})
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = newTestService(&memRepo{}, new(mockExtractor)).Upload(context.Background(), UploadRequest{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestService_RecordManual(t *testing.T) {
	repo := &memRepo{}
	svc := newTestService(repo, nil)
	ctx := context.Background()

	req := ManualEntryRequest{Date: "2025-06-02", Amount: 99.9, MerchantCode: "1020", ReferenceMonth: "2025-06"}
	res, err := svc.RecordManual(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "received", res.Status)

	req.Amount = 120
	res, err = svc.RecordManual(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.Created)
	require.Len(t, repo.rows, 1)
	assert.True(t, repo.rows[0].Amount.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, ManualUploader, repo.rows[0].UploadedBy)

	tests := []struct {
		name string
		req  ManualEntryRequest
		want error
	}{
		{"bad month", ManualEntryRequest{Date: "2025-06-02", MerchantCode: "1", ReferenceMonth: "06/2025"}, shared.ErrInvalidPeriod},
		{"bad date", ManualEntryRequest{Date: "02/06/2025", MerchantCode: "1", ReferenceMonth: "2025-06"}, shared.ErrInvalidInput},
		{"no merchant", ManualEntryRequest{Date: "2025-06-02", ReferenceMonth: "2025-06"}, shared.ErrInvalidInput},
		{"bad status", ManualEntryRequest{Date: "2025-06-02", MerchantCode: "1", ReferenceMonth: "2025-06", Status: "paid"}, shared.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordManual(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func seeded() *memRepo {
	row := func(day int, merchant, amount string, status cardreceivable.Status) cardreceivable.CardReceivable {
		return cardreceivable.CardReceivable{
			RecognitionDate: d(2025, 6, day),
			Amount:          decimal.RequireFromString(amount),
			MerchantCode:    merchant,
			ReferenceMonth:  "2025-06",
			Status:          status,
		}
	}
	return &memRepo{rows: []cardreceivable.CardReceivable{
		row(2, "1020", "100", cardreceivable.StatusProjected),
		row(2, "2030", "50", cardreceivable.StatusProjected),
		row(2, "1020", "90", cardreceivable.StatusReceived),
		row(3, "1020", "30", cardreceivable.StatusProjected),
		row(5, "1020", "12.5", cardreceivable.StatusReceived),
	}}
}

func TestService_DailyTotals(t *testing.T) {
	svc := newTestService(seeded(), nil)
	ctx := context.Background()

	got, err := svc.DailyTotals(ctx, DailyTotalsQuery{From: "2025-06-01", To: "2025-06-30"})
	require.NoError(t, err)
	assert.Equal(t, []DailyTotalResponse{{Date: "2025-06-02", Total: 150}, {Date: "2025-06-03", Total: 30}}, got)

	got, err = svc.DailyTotals(ctx, DailyTotalsQuery{From: "2025-06-01", To: "2025-06-30", Merchants: []string{"2030"}})
	require.NoError(t, err)
	assert.Equal(t, []DailyTotalResponse{{Date: "2025-06-02", Total: 50}}, got)

	_, err = svc.DailyTotals(ctx, DailyTotalsQuery{From: "2025-06-30", To: "2025-06-01"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestService_Reconcile(t *testing.T) {
	svc := newTestService(seeded(), nil)

	got, err := svc.Reconcile(context.Background(), "2025-06", nil)
	require.NoError(t, err)
	assert.Equal(t, &ReconciliationResponse{
		ReferenceMonth: "2025-06",
		Projected:      180,
		Received:       102.5,
		Difference:     -77.5,
		Days: []ReconciliationDay{
			{Date: "2025-06-02", Projected: 150, Received: 90, Difference: -60},
			{Date: "2025-06-03", Projected: 30, Received: 0, Difference: -30},
			{Date: "2025-06-05", Projected: 0, Received: 12.5, Difference: 12.5},
		},
	}, got)
}

func TestService_MonthDetailStatsAndDelete(t *testing.T) {
	repo := seeded()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	detail, err := svc.MonthDetail(ctx, "2025-06")
	require.NoError(t, err)
	assert.Len(t, detail, 5)
	assert.Equal(t, "2025-06-02", detail[0].Date)

	stats, err := svc.Stats(ctx, "2025-06")
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Records)
	assert.Equal(t, int64(2), stats.Merchants)
	assert.Equal(t, 282.5, stats.Total)
	assert.Equal(t, 56.5, stats.Average)

	n, err := svc.DeleteMonth(ctx, "2025-06", "2030")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.DeleteMonth(ctx, "2025-06", "2030")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Stats(ctx, "junho")
	assert.ErrorIs(t, err, shared.ErrInvalidPeriod)
}

func TestService_Upload_RepeatedDateKeepsOtherEntries(t *testing.T) {
	raw := `{"reference_month":"2025-06","merchant_code":"1020","entries":[` +
		`{"date":"2025-06-02","amount":10},{"date":"2025-06-03","amount":20},{"date":"2025-06-03","amount":25}]}`
	ext := new(mockExtractor)
	ext.On("Extract", mock.Anything, mock.Anything, mock.Anything).Return([]byte(raw), nil)
	repo := &memRepo{}
	svc := newTestService(repo, ext)

	res, err := svc.Upload(context.Background(), UploadRequest{Images: []Image{{Name: "a.png", Data: []byte("a")}}})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.TotalInserted)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "2025-06-03", res.Errors[0].Date)
	assert.Contains(t, res.Errors[0].Message, "repeats entry 1")
	assert.True(t, res.Items[0].Success)

	stored, _ := repo.FindByMonth(context.Background(), "2025-06")
	require.Len(t, stored, 2)
	assert.True(t, decimal.NewFromInt(20).Equal(stored[1].Amount), "first entry of a repeated date wins")
}
