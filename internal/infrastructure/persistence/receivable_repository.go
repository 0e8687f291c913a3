package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/finsync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormReceivableStore implements ledger.ReceivableStore using GORM
type GormReceivableStore struct {
	db        *gorm.DB
	batchSize int
	now       func() time.Time
}

// NewGormReceivableStore creates a new GormReceivableStore
func NewGormReceivableStore(db *gorm.DB, batchSize int) *GormReceivableStore {
	return &GormReceivableStore{db: db, batchSize: batchSize, now: time.Now}
}

// ReplaceWindow deletes the stored rows whose raw projected-payment date maps
// into the window and inserts rows in their place.
func (s *GormReceivableStore) ReplaceWindow(ctx context.Context, w ledger.Window, rows []ledger.ReceivableRecord) (ledger.ReplaceResult, error) {
	syncedAt := s.now()
	batch := make([]models.ReceivableModel, 0, len(rows))
	for _, r := range rows {
		batch = append(batch, models.ReceivableModelFromDomain(r, syncedAt))
	}
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("projected_payment_date BETWEEN ? AND ?", w.RawFrom, w.RawTo)
		return branchScope(w.Branches)(db)
	}
	return replaceRows(ctx, s.db, s.batchSize, scope, batch)
}

// Find returns rows whose raw projected-payment date lies in the filter range
func (s *GormReceivableStore) Find(ctx context.Context, filter ledger.RecordFilter) ([]ledger.ReceivableRecord, error) {
	var rows []models.ReceivableModel
	err := s.db.WithContext(ctx).
		Scopes(branchScope(filter.Branches)).
		Where("projected_payment_date BETWEEN ? AND ?", filter.RawFrom, filter.RawTo).
		Order("projected_payment_date, branch_code, document_number").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find receivables: %w", err)
	}
	return receivablesToDomain(rows), nil
}

// FindSettled returns settled rows paid between from and to
func (s *GormReceivableStore) FindSettled(ctx context.Context, from, to time.Time, branches []int) ([]ledger.ReceivableRecord, error) {
	var rows []models.ReceivableModel
	err := s.db.WithContext(ctx).
		Scopes(branchScope(branches)).
		Where("status = ?", ledger.StatusSettled).
		Where("last_payment_date BETWEEN ? AND ?", ledger.DateOnly(from), ledger.DateOnly(to)).
		Order("last_payment_date, branch_code, document_number").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find settled receivables: %w", err)
	}
	return receivablesToDomain(rows), nil
}

// Count returns the number of stored rows
func (s *GormReceivableStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.ReceivableModel{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count receivables: %w", err)
	}
	return n, nil
}

func receivablesToDomain(rows []models.ReceivableModel) []ledger.ReceivableRecord {
	out := make([]ledger.ReceivableRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

var _ ledger.ReceivableStore = (*GormReceivableStore)(nil)
