package persistence

import (
	"context"
	"fmt"

	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/finsync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormReferenceStore implements ledger.ReferenceStore using GORM
type GormReferenceStore struct {
	db        *gorm.DB
	batchSize int
}

// NewGormReferenceStore creates a new GormReferenceStore
func NewGormReferenceStore(db *gorm.DB, batchSize int) *GormReferenceStore {
	return &GormReferenceStore{db: db, batchSize: batchSize}
}

// ReloadFinancialPlan truncates the plan table and loads entries
func (s *GormReferenceStore) ReloadFinancialPlan(ctx context.Context, entries []ledger.FinancialPlanEntry) (ledger.ReplaceResult, error) {
	rows := make([]models.FinancialPlanModel, len(entries))
	for i, e := range entries {
		rows[i] = models.FinancialPlanModelFromDomain(e)
	}
	return reloadTable(ctx, s.db, s.batchSize, rows)
}

// ReloadCostCenters truncates the cost center table and loads entries
func (s *GormReferenceStore) ReloadCostCenters(ctx context.Context, entries []ledger.CostCenterEntry) (ledger.ReplaceResult, error) {
	rows := make([]models.CostCenterModel, len(entries))
	for i, e := range entries {
		rows[i] = models.CostCenterModelFromDomain(e)
	}
	return reloadTable(ctx, s.db, s.batchSize, rows)
}

// FinancialPlan returns every plan account ordered by reduced account
func (s *GormReferenceStore) FinancialPlan(ctx context.Context) ([]ledger.FinancialPlanEntry, error) {
	var rows []models.FinancialPlanModel
	if err := s.db.WithContext(ctx).Order("reduced_account").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find financial plan: %w", err)
	}
	out := make([]ledger.FinancialPlanEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// CostCenters returns every cost center ordered by reduced account
func (s *GormReferenceStore) CostCenters(ctx context.Context) ([]ledger.CostCenterEntry, error) {
	var rows []models.CostCenterModel
	if err := s.db.WithContext(ctx).Order("reduced_account").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find cost centers: %w", err)
	}
	out := make([]ledger.CostCenterEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

var _ ledger.ReferenceStore = (*GormReferenceStore)(nil)
