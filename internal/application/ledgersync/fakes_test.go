package ledgersync

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/finsync/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) FetchReceivables(ctx context.Context, w ledger.Window) ([]ledger.ReceivableRecord, error) {
	args := m.Called(ctx, w)
	rows, _ := args.Get(0).([]ledger.ReceivableRecord)
	return rows, args.Error(1)
}

func (m *mockSource) FetchPayables(ctx context.Context, w ledger.Window) ([]ledger.PayableRecord, error) {
	args := m.Called(ctx, w)
	rows, _ := args.Get(0).([]ledger.PayableRecord)
	return rows, args.Error(1)
}

func (m *mockSource) FetchFinancialPlan(ctx context.Context) ([]ledger.FinancialPlanEntry, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]ledger.FinancialPlanEntry)
	return rows, args.Error(1)
}

func (m *mockSource) FetchCostCenters(ctx context.Context) ([]ledger.CostCenterEntry, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]ledger.CostCenterEntry)
	return rows, args.Error(1)
}

// memReceivables replaces rows by the window predicate like the SQL store does
type memReceivables struct {
	mu      sync.Mutex
	rows    []ledger.ReceivableRecord
	windows []ledger.Window
	err     error
}

func (s *memReceivables) ReplaceWindow(ctx context.Context, w ledger.Window, rows []ledger.ReceivableRecord) (ledger.ReplaceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = append(s.windows, w)
	if err := ctx.Err(); err != nil {
		return ledger.ReplaceResult{}, shared.StoreWriteFailure(err)
	}
	if s.err != nil {
		return ledger.ReplaceResult{}, shared.StoreWriteFailure(s.err)
	}
	kept := s.rows[:0:0]
	for _, r := range s.rows {
		if !w.Matches(r.ProjectedPaymentDate, r.BranchCode) {
			kept = append(kept, r)
		}
	}
	res := ledger.ReplaceResult{RowsDeleted: int64(len(s.rows) - len(kept)), RowsInserted: int64(len(rows))}
	s.rows = append(kept, rows...)
	return res, nil
}

func (s *memReceivables) Find(context.Context, ledger.RecordFilter) ([]ledger.ReceivableRecord, error) {
	return slices.Clone(s.rows), nil
}

func (s *memReceivables) FindSettled(context.Context, time.Time, time.Time, []int) ([]ledger.ReceivableRecord, error) {
	return nil, nil
}

func (s *memReceivables) Count(context.Context) (int64, error) {
	return int64(len(s.rows)), nil
}

type memPayables struct {
	rows    []ledger.PayableRecord
	windows []ledger.Window
}

func (s *memPayables) ReplaceWindow(_ context.Context, w ledger.Window, rows []ledger.PayableRecord) (ledger.ReplaceResult, error) {
	s.windows = append(s.windows, w)
	kept := s.rows[:0:0]
	for _, r := range s.rows {
		if !w.Matches(r.DueDate, r.BranchCode) {
			kept = append(kept, r)
		}
	}
	res := ledger.ReplaceResult{RowsDeleted: int64(len(s.rows) - len(kept)), RowsInserted: int64(len(rows))}
	s.rows = append(kept, rows...)
	return res, nil
}

func (s *memPayables) Find(context.Context, ledger.RecordFilter) ([]ledger.PayableRecord, error) {
	return slices.Clone(s.rows), nil
}

func (s *memPayables) Count(context.Context) (int64, error) {
	return int64(len(s.rows)), nil
}

type memReference struct {
	plan    []ledger.FinancialPlanEntry
	centers []ledger.CostCenterEntry
	reloads []string
}

func (s *memReference) ReloadFinancialPlan(_ context.Context, entries []ledger.FinancialPlanEntry) (ledger.ReplaceResult, error) {
	s.reloads = append(s.reloads, "financial_plan")
	res := ledger.ReplaceResult{RowsDeleted: int64(len(s.plan)), RowsInserted: int64(len(entries))}
	s.plan = entries
	return res, nil
}

func (s *memReference) ReloadCostCenters(_ context.Context, entries []ledger.CostCenterEntry) (ledger.ReplaceResult, error) {
	s.reloads = append(s.reloads, "cost_center")
	res := ledger.ReplaceResult{RowsDeleted: int64(len(s.centers)), RowsInserted: int64(len(entries))}
	s.centers = entries
	return res, nil
}

func (s *memReference) FinancialPlan(context.Context) ([]ledger.FinancialPlanEntry, error) {
	return s.plan, nil
}

func (s *memReference) CostCenters(context.Context) ([]ledger.CostCenterEntry, error) {
	return s.centers, nil
}

// memRuns keeps copies of every run and counts updates per id
type memRuns struct {
	mu      sync.Mutex
	order   []ledger.SyncRun
	updates map[string]int
}

func newMemRuns() *memRuns {
	return &memRuns{updates: map[string]int{}}
}

func (r *memRuns) Create(_ context.Context, run *ledger.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, *run)
	return nil
}

func (r *memRuns) Update(_ context.Context, run *ledger.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.order {
		if r.order[i].ID == run.ID {
			r.order[i] = *run
			r.updates[run.ID.String()]++
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memRuns) FindLatest(_ context.Context, entity *ledger.EntityType) (*ledger.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		if entity == nil || r.order[i].EntityType == *entity {
			run := r.order[i]
			return &run, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memRuns) FindRecent(_ context.Context, limit int) ([]ledger.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.SyncRun, 0, limit)
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.order[i])
	}
	return out, nil
}

func (r *memRuns) byEntity(entity ledger.EntityType) []ledger.SyncRun {
	var out []ledger.SyncRun
	for _, run := range r.order {
		if run.EntityType == entity {
			out = append(out, run)
		}
	}
	return out
}

// tickingClock advances 10ms per call
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(10 * time.Millisecond)
		return t
	}
}
