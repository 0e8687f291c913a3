package ledgersync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/finsync/backend/internal/domain/shared"
	"github.com/finsync/backend/internal/infrastructure/cache"
	"github.com/finsync/backend/internal/infrastructure/scheduler"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var june = ledger.NewPeriod(2025, time.June)

type fixture struct {
	source      *mockSource
	receivables *memReceivables
	payables    *memPayables
	reference   *memReference
	runs        *memRuns
	locker      *cache.InMemoryLocker
	service     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		source:      new(mockSource),
		receivables: &memReceivables{},
		payables:    &memPayables{},
		reference:   &memReference{},
		runs:        newMemRuns(),
		locker:      cache.NewInMemoryLocker(),
	}
	f.service = NewService(f.source, f.receivables, f.payables, f.reference, f.runs,
		WithLocker(f.locker),
		WithClock(tickingClock()),
		WithLogger(zap.NewNop()),
	)
	return f
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func receivable(doc string, branch int, raw time.Time, open string) ledger.ReceivableRecord {
	return ledger.ReceivableRecord{
		CompanyCode:          10,
		BranchCode:           branch,
		DocumentNumber:       doc,
		DocumentType:         "DP",
		Status:               ledger.StatusOpen,
		ProjectedPaymentDate: raw,
		OpenAmount:           decimal.RequireFromString(open),
		OriginalAmount:       decimal.RequireFromString(open),
		Direction:            ledger.DirectionCredit,
	}
}

func payable(doc string, seq int, due time.Time, open string) ledger.PayableRecord {
	return ledger.PayableRecord{
		CompanyCode:       10,
		BranchCode:        1001,
		DocumentNumber:    doc,
		Sequence:          seq,
		DueDate:           due,
		OpenAmount:        decimal.RequireFromString(open),
		ApportionedAmount: decimal.RequireFromString(open),
		LedgerAccount:     4101,
	}
}

func TestSyncReceivables_Success(t *testing.T) {
	f := newFixture(t)
	rows := []ledger.ReceivableRecord{
		receivable("NF-1", 1001, day(2025, 6, 6), "100"),
		receivable("NF-1", 1001, day(2025, 6, 6), "100"), // duplicate title
		receivable("NF-2", 3001, day(2025, 6, 10), "50"),
	}
	wantWindow := ledger.ReceivableWindow(june, ledger.DefaultBranches)
	f.source.On("FetchReceivables", mock.Anything, wantWindow).Return(rows, nil).Once()

	res, err := f.service.SyncReceivables(context.Background(), june, "ana")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, ledger.EntityReceivables, res.EntityType)
	assert.Equal(t, "2025-06", res.Period)
	assert.Equal(t, int64(2), res.RowsInserted)
	assert.Positive(t, res.DurationMs)
	assert.Contains(t, res.Message, "2 rows inserted")

	runs := f.runs.byEntity(ledger.EntityReceivables)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, ledger.SyncStatusSuccess, runs[0].Status)
	assert.Equal(t, "ana", runs[0].ExecutedBy)
	assert.Equal(t, 1, f.runs.updates[runs[0].ID.String()], "run is updated exactly once")
	assert.False(t, f.locker.Held(cache.DefaultKeyPrefix+"receivables"), "lock released")
	f.source.AssertExpectations(t)
}

func TestSyncReceivables_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	rows := []ledger.ReceivableRecord{
		receivable("NF-1", 1001, day(2025, 6, 6), "100"),
		receivable("NF-2", 1002, day(2025, 6, 9), "75"),
	}
	f.source.On("FetchReceivables", mock.Anything, mock.Anything).Return(rows, nil)

	_, err := f.service.SyncReceivables(context.Background(), june, "")
	require.NoError(t, err)
	first := append([]ledger.ReceivableRecord(nil), f.receivables.rows...)

	res, err := f.service.SyncReceivables(context.Background(), june, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsDeleted)
	assert.Equal(t, first, f.receivables.rows)
}

func TestSyncReceivables_Failures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture)
		wantCode error
		wantMsg  string
	}{
		{
			name: "source unavailable",
			setup: func(f *fixture) {
				f.source.On("FetchReceivables", mock.Anything, mock.Anything).
					Return(nil, shared.SourceUnavailable(errors.New("login timeout")))
			},
			wantCode: shared.ErrSourceUnavailable,
			wantMsg:  "login timeout",
		},
		{
			name: "store write failure",
			setup: func(f *fixture) {
				f.source.On("FetchReceivables", mock.Anything, mock.Anything).Return([]ledger.ReceivableRecord{}, nil)
				f.receivables.err = errors.New("disk full")
			},
			wantCode: shared.ErrStoreWriteFailure,
			wantMsg:  "disk full",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			res, err := f.service.SyncReceivables(context.Background(), june, "")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantCode)
			require.NotNil(t, res)
			assert.False(t, res.Success)
			assert.Contains(t, res.Message, tt.wantMsg)

			runs := f.runs.byEntity(ledger.EntityReceivables)
			require.Len(t, runs, 1)
			assert.Equal(t, ledger.SyncStatusError, runs[0].Status)
			assert.Contains(t, runs[0].ErrorMessage, tt.wantMsg)
			assert.NotEmpty(t, runs[0].ErrorStack)
			assert.NotNil(t, runs[0].FinishedAt)
		})
	}
}

func TestSyncReceivables_PanicIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.source.On("FetchReceivables", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("driver bug")
	})

	res, err := f.service.SyncReceivables(context.Background(), june, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "driver bug")
	assert.False(t, res.Success)

	run := f.runs.byEntity(ledger.EntityReceivables)[0]
	assert.Equal(t, ledger.SyncStatusError, run.Status)
	assert.Contains(t, run.ErrorStack, "panic")
	assert.False(t, f.locker.Held(cache.DefaultKeyPrefix+"receivables"))
}

func TestSync_ConcurrentCallFailsFast(t *testing.T) {
	f := newFixture(t)
	release, err := f.locker.Acquire(context.Background(), cache.DefaultKeyPrefix+"payables")
	require.NoError(t, err)
	defer func() { _ = release(context.Background()) }()

	res, err := f.service.SyncPayables(context.Background(), june, "")
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrSyncInProgress)
	assert.Empty(t, f.runs.order, "no run is recorded for a rejected call")
	f.source.AssertNotCalled(t, "FetchPayables", mock.Anything, mock.Anything)
}

func TestSync_CallerCancellationDoesNotAbortRun(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	live := mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })
	f.source.On("FetchReceivables", live, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return([]ledger.ReceivableRecord{receivable("NF-1", 1001, day(2025, 6, 10), "10")}, nil).Once()

	res, err := f.service.SyncReceivables(ctx, june, "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(1), res.RowsInserted)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Equal(t, ledger.SyncStatusSuccess, f.runs.byEntity(ledger.EntityReceivables)[0].Status)
	f.source.AssertExpectations(t)
}

// keyRecorder is a Locker that records the keys it is asked for
type keyRecorder struct {
	keys []string
}

func (r *keyRecorder) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	r.keys = append(r.keys, key)
	return func(context.Context) error { return nil }, nil
}

func TestSync_LockKeysArePrefixedOnce(t *testing.T) {
	f := newFixture(t)
	rec := &keyRecorder{}
	svc := NewService(f.source, f.receivables, f.payables, f.reference, f.runs,
		WithLocker(rec), WithKeyPrefix("erp-a:"))
	f.source.On("FetchPayables", mock.Anything, mock.Anything).Return([]ledger.PayableRecord(nil), nil)

	_, err := svc.SyncPayables(context.Background(), june, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"erp-a:payables"}, rec.keys)
}

func TestSyncPayables_FourMonthWindowAndCanonicalRows(t *testing.T) {
	f := newFixture(t)
	wantWindow := ledger.PayableWindow(june, ledger.DefaultBranches)
	assert.Equal(t, day(2025, 3, 1), wantWindow.From)

	f.source.On("FetchPayables", mock.Anything, wantWindow).Return([]ledger.PayableRecord{
		payable("T-1", 1, day(2025, 3, 10), "10"),
		payable("T-1", 2, day(2025, 3, 10), "10"),
		payable("T-2", 1, day(2025, 6, 14), "20"),
	}, nil).Once()

	res, err := f.service.SyncPayables(context.Background(), june, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsInserted)
	require.Len(t, f.payables.windows, 1)
	assert.Equal(t, wantWindow, f.payables.windows[0])
	for _, r := range f.payables.rows {
		assert.True(t, r.IsCanonical())
	}
}

func TestSyncReferenceData(t *testing.T) {
	f := newFixture(t)
	f.reference.plan = []ledger.FinancialPlanEntry{{ReducedAccount: 1}}
	f.source.On("FetchFinancialPlan", mock.Anything).Return([]ledger.FinancialPlanEntry{
		{ReducedAccount: 4101, Level: 6, Nature: ledger.NatureExpense},
		{ReducedAccount: 3101, Level: 6, Nature: ledger.NatureRevenue},
	}, nil)
	f.source.On("FetchCostCenters", mock.Anything).Return([]ledger.CostCenterEntry{{CostCenter: "20"}}, nil)

	res, err := f.service.SyncReferenceData(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"financial_plan", "cost_center"}, f.reference.reloads)
	assert.Equal(t, ledger.EntityReferenceData, res.EntityType)
	assert.Equal(t, int64(3), res.RowsInserted)
	assert.Equal(t, int64(1), res.RowsDeleted)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, ledger.EntityFinancialPlan, res.Steps[0].EntityType)
	assert.Equal(t, ledger.EntityCostCenter, res.Steps[1].EntityType)

	umbrella := f.runs.byEntity(ledger.EntityReferenceData)
	require.Len(t, umbrella, 1)
	assert.Len(t, umbrella[0].Steps, 2)
	assert.Len(t, f.runs.byEntity(ledger.EntityFinancialPlan), 1)
	assert.Len(t, f.runs.byEntity(ledger.EntityCostCenter), 1)
}

func TestSyncAll_OrderAndAggregation(t *testing.T) {
	f := newFixture(t)
	var calls []string
	record := func(name string) func(mock.Arguments) {
		return func(mock.Arguments) { calls = append(calls, name) }
	}
	f.source.On("FetchFinancialPlan", mock.Anything).Run(record("plan")).Return([]ledger.FinancialPlanEntry{{ReducedAccount: 1}}, nil)
	f.source.On("FetchCostCenters", mock.Anything).Run(record("centers")).Return([]ledger.CostCenterEntry{{CostCenter: "1"}}, nil)
	f.source.On("FetchReceivables", mock.Anything, mock.Anything).Run(record("receivables")).
		Return([]ledger.ReceivableRecord{receivable("NF-1", 1001, day(2025, 6, 3), "5")}, nil)
	f.source.On("FetchPayables", mock.Anything, mock.Anything).Run(record("payables")).
		Return([]ledger.PayableRecord{payable("T-1", 1, day(2025, 6, 3), "5")}, nil)

	res, err := f.service.SyncAll(context.Background(), june, "cron")
	require.NoError(t, err)

	assert.Equal(t, []string{"plan", "centers", "receivables", "payables"}, calls)
	assert.True(t, res.Success)
	assert.Equal(t, ledger.EntityAll, res.EntityType)
	assert.Equal(t, int64(4), res.RowsInserted)
	require.Len(t, res.Steps, 3)
	assert.Equal(t, ledger.EntityReferenceData, res.Steps[0].EntityType)
	assert.Equal(t, ledger.EntityReceivables, res.Steps[1].EntityType)
	assert.Equal(t, ledger.EntityPayables, res.Steps[2].EntityType)

	all := f.runs.byEntity(ledger.EntityAll)
	require.Len(t, all, 1)
	assert.Equal(t, ledger.SyncStatusSuccess, all[0].Status)
	assert.Len(t, all[0].Steps, 3)
}

func TestSyncAll_StopsAtFirstFailure(t *testing.T) {
	f := newFixture(t)
	f.source.On("FetchFinancialPlan", mock.Anything).Return([]ledger.FinancialPlanEntry{}, nil)
	f.source.On("FetchCostCenters", mock.Anything).Return([]ledger.CostCenterEntry{}, nil)
	f.source.On("FetchReceivables", mock.Anything, mock.Anything).
		Return(nil, shared.SourceUnavailable(errors.New("connection reset")))

	res, err := f.service.SyncAll(context.Background(), june, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrSourceUnavailable)
	assert.False(t, res.Success)
	require.Len(t, res.Steps, 2)
	assert.True(t, res.Steps[0].Success, "reference data stays committed")
	assert.False(t, res.Steps[1].Success)
	f.source.AssertNotCalled(t, "FetchPayables", mock.Anything, mock.Anything)

	all := f.runs.byEntity(ledger.EntityAll)
	require.Len(t, all, 1)
	assert.Equal(t, ledger.SyncStatusError, all[0].Status)
	assert.Contains(t, all[0].ErrorMessage, "receivables")
}

func TestLastStatusAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	status, err := f.service.LastStatus(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, status, "no run yet")

	f.source.On("FetchReceivables", mock.Anything, mock.Anything).Return([]ledger.ReceivableRecord{}, nil)
	f.source.On("FetchPayables", mock.Anything, mock.Anything).Return([]ledger.PayableRecord{}, nil)
	_, err = f.service.SyncReceivables(ctx, june, "")
	require.NoError(t, err)
	_, err = f.service.SyncPayables(ctx, june, "")
	require.NoError(t, err)

	status, err = f.service.LastStatus(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, ledger.EntityPayables, status.EntityType)

	recv := ledger.EntityReceivables
	status, err = f.service.LastStatus(ctx, &recv)
	require.NoError(t, err)
	assert.Equal(t, ledger.EntityReceivables, status.EntityType)
	assert.Equal(t, ledger.SyncStatusSuccess, status.Status)

	history, err := f.service.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ledger.EntityPayables, history[0].EntityType)
}

func TestRun_Dispatch(t *testing.T) {
	f := newFixture(t)
	f.source.On("FetchPayables", mock.Anything, mock.Anything).Return([]ledger.PayableRecord{}, nil)

	res, err := f.service.Run(context.Background(), ledger.EntityPayables, june, "")
	require.NoError(t, err)
	assert.Equal(t, ledger.EntityPayables, res.EntityType)

	_, err = f.service.Run(context.Background(), ledger.EntityType("orders"), june, "")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestJobExecutor(t *testing.T) {
	f := newFixture(t)
	f.source.On("FetchReceivables", mock.Anything, mock.Anything).Return([]ledger.ReceivableRecord{}, nil)

	job := scheduler.NewJob(ledger.EntityReceivables, june, scheduler.TriggerManual, 0)
	require.NoError(t, NewJobExecutor(f.service).Execute(context.Background(), job))

	runs := f.runs.byEntity(ledger.EntityReceivables)
	require.Len(t, runs, 1)
	assert.Equal(t, "scheduler", runs[0].ExecutedBy)
}
