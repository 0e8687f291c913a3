package ledger

import (
	"context"
	"time"
)

// ReplaceResult reports the effect of one replace operation
type ReplaceResult struct {
	RowsDeleted  int64
	RowsInserted int64
}

// RecordFilter selects stored ledger rows by raw date and branch
type RecordFilter struct {
	RawFrom  time.Time
	RawTo    time.Time
	Branches []int // empty means all branches
}

// FilterFor builds the raw-date filter matching a window
func FilterFor(w Window) RecordFilter {
	return RecordFilter{RawFrom: w.RawFrom, RawTo: w.RawTo, Branches: w.Branches}
}

// ReceivableStore is the local store for receivable rows
type ReceivableStore interface {
	// ReplaceWindow deletes the rows matching the window and inserts rows, atomically
	ReplaceWindow(ctx context.Context, w Window, rows []ReceivableRecord) (ReplaceResult, error)

	// Find returns rows whose projected-payment date lies in the filter range
	Find(ctx context.Context, filter RecordFilter) ([]ReceivableRecord, error)

	// FindSettled returns settled rows whose last payment date lies in [from, to]
	FindSettled(ctx context.Context, from, to time.Time, branches []int) ([]ReceivableRecord, error)

	// Count returns the number of stored rows
	Count(ctx context.Context) (int64, error)
}

// PayableStore is the local store for payable rows
type PayableStore interface {
	// ReplaceWindow deletes the rows matching the window and inserts rows, atomically
	ReplaceWindow(ctx context.Context, w Window, rows []PayableRecord) (ReplaceResult, error)

	// Find returns rows whose due date lies in the filter range
	Find(ctx context.Context, filter RecordFilter) ([]PayableRecord, error)

	// Count returns the number of stored rows
	Count(ctx context.Context) (int64, error)
}

// ReferenceStore holds the financial plan and cost center dimensions
type ReferenceStore interface {
	ReloadFinancialPlan(ctx context.Context, entries []FinancialPlanEntry) (ReplaceResult, error)
	ReloadCostCenters(ctx context.Context, entries []CostCenterEntry) (ReplaceResult, error)
	FinancialPlan(ctx context.Context) ([]FinancialPlanEntry, error)
	CostCenters(ctx context.Context) ([]CostCenterEntry, error)
}

// SyncRunRepository persists the synchronization audit log
type SyncRunRepository interface {
	// Create inserts a new run record
	Create(ctx context.Context, run *SyncRun) error

	// Update writes the final state of a run
	Update(ctx context.Context, run *SyncRun) error

	// FindLatest returns the most recent run, optionally of one entity type
	FindLatest(ctx context.Context, entity *EntityType) (*SyncRun, error)

	// FindRecent returns up to limit runs, newest first
	FindRecent(ctx context.Context, limit int) ([]SyncRun, error)
}

// Source is the read-only external ledger
type Source interface {
	FetchReceivables(ctx context.Context, w Window) ([]ReceivableRecord, error)
	FetchPayables(ctx context.Context, w Window) ([]PayableRecord, error)
	FetchFinancialPlan(ctx context.Context) ([]FinancialPlanEntry, error)
	FetchCostCenters(ctx context.Context) ([]CostCenterEntry, error)
}
