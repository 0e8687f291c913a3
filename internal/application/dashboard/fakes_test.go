package dashboard

import (
	"context"
	"slices"
	"time"

	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// receivableStore filters by raw projected-payment date and branch like the SQL store
type receivableStore struct {
	rows []ledger.ReceivableRecord
	err  error
}

func (s *receivableStore) ReplaceWindow(context.Context, ledger.Window, []ledger.ReceivableRecord) (ledger.ReplaceResult, error) {
	return ledger.ReplaceResult{}, nil
}

func (s *receivableStore) Find(_ context.Context, f ledger.RecordFilter) ([]ledger.ReceivableRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []ledger.ReceivableRecord
	for _, r := range s.rows {
		if inRange(r.ProjectedPaymentDate, f.RawFrom, f.RawTo) && branchOK(r.BranchCode, f.Branches) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *receivableStore) FindSettled(_ context.Context, from, to time.Time, branches []int) ([]ledger.ReceivableRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []ledger.ReceivableRecord
	for _, r := range s.rows {
		if r.Status != ledger.StatusSettled || r.LastPaymentDate == nil {
			continue
		}
		if inRange(*r.LastPaymentDate, from, to) && branchOK(r.BranchCode, branches) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *receivableStore) Count(context.Context) (int64, error) {
	return int64(len(s.rows)), nil
}

type payableStore struct {
	rows []ledger.PayableRecord
	err  error
}

func (s *payableStore) ReplaceWindow(context.Context, ledger.Window, []ledger.PayableRecord) (ledger.ReplaceResult, error) {
	return ledger.ReplaceResult{}, nil
}

func (s *payableStore) Find(_ context.Context, f ledger.RecordFilter) ([]ledger.PayableRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []ledger.PayableRecord
	for _, p := range s.rows {
		if inRange(p.DueDate, f.RawFrom, f.RawTo) && branchOK(p.BranchCode, f.Branches) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *payableStore) Count(context.Context) (int64, error) {
	return int64(len(s.rows)), nil
}

type referenceStore struct {
	plan    []ledger.FinancialPlanEntry
	centers []ledger.CostCenterEntry
}

func (s *referenceStore) ReloadFinancialPlan(context.Context, []ledger.FinancialPlanEntry) (ledger.ReplaceResult, error) {
	return ledger.ReplaceResult{}, nil
}

func (s *referenceStore) ReloadCostCenters(context.Context, []ledger.CostCenterEntry) (ledger.ReplaceResult, error) {
	return ledger.ReplaceResult{}, nil
}

func (s *referenceStore) FinancialPlan(context.Context) ([]ledger.FinancialPlanEntry, error) {
	return s.plan, nil
}

func (s *referenceStore) CostCenters(context.Context) ([]ledger.CostCenterEntry, error) {
	return s.centers, nil
}

func inRange(d, from, to time.Time) bool {
	d = ledger.DateOnly(d)
	return !d.Before(from) && !d.After(to)
}

func branchOK(branch int, branches []int) bool {
	return len(branches) == 0 || slices.Contains(branches, branch)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func recv(client int, name string, datppt time.Time, amount string, account int) ledger.ReceivableRecord {
	v := decimal.RequireFromString(amount)
	return ledger.ReceivableRecord{
		CompanyCode:          10,
		BranchCode:           1001,
		ClientCode:           client,
		ClientName:           name,
		DocumentNumber:       datppt.Format("20060102") + name,
		Status:               ledger.StatusOpen,
		ProjectedPaymentDate: datppt,
		OriginalAmount:       v,
		OpenAmount:           v,
		Direction:            ledger.DirectionCredit,
		LedgerAccount:        account,
	}
}

func pay(supplier int, name string, due time.Time, amount string, account, costCenter int) ledger.PayableRecord {
	return ledger.PayableRecord{
		CompanyCode:       10,
		BranchCode:        1001,
		DocumentNumber:    due.Format("20060102") + name,
		SupplierCode:      supplier,
		SupplierName:      name,
		Sequence:          1,
		Status:            ledger.StatusOpen,
		DueDate:           due,
		ApportionedAmount: decimal.RequireFromString(amount),
		OpenAmount:        decimal.Zero,
		LedgerAccount:     account,
		CostCenter:        costCenter,
	}
}

// fixedNow is 2025-06-15 (a Sunday) at noon UTC
func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func newTestService(r *receivableStore, p *payableStore, ref *referenceStore, opts ...Option) *Service {
	if r == nil {
		r = &receivableStore{}
	}
	if p == nil {
		p = &payableStore{}
	}
	if ref == nil {
		ref = &referenceStore{}
	}
	opts = append([]Option{WithClock(fixedNow)}, opts...)
	return NewService(r, p, ref, opts...)
}
