package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/finsync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPayableStore implements ledger.PayableStore using GORM
type GormPayableStore struct {
	db        *gorm.DB
	batchSize int
	now       func() time.Time
}

// NewGormPayableStore creates a new GormPayableStore
func NewGormPayableStore(db *gorm.DB, batchSize int) *GormPayableStore {
	return &GormPayableStore{db: db, batchSize: batchSize, now: time.Now}
}

// ReplaceWindow deletes the stored rows whose raw due date maps into the
// window and inserts rows in their place. Stored rows are always actuals.
func (s *GormPayableStore) ReplaceWindow(ctx context.Context, w ledger.Window, rows []ledger.PayableRecord) (ledger.ReplaceResult, error) {
	syncedAt := s.now()
	batch := make([]models.PayableModel, 0, len(rows))
	for _, p := range rows {
		batch = append(batch, models.PayableModelFromDomain(p, syncedAt))
	}
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("due_date BETWEEN ? AND ?", w.RawFrom, w.RawTo)
		return branchScope(w.Branches)(db)
	}
	return replaceRows(ctx, s.db, s.batchSize, scope, batch)
}

// Find returns rows whose raw due date lies in the filter range
func (s *GormPayableStore) Find(ctx context.Context, filter ledger.RecordFilter) ([]ledger.PayableRecord, error) {
	var rows []models.PayableModel
	err := s.db.WithContext(ctx).
		Scopes(branchScope(filter.Branches)).
		Where("due_date BETWEEN ? AND ?", filter.RawFrom, filter.RawTo).
		Order("due_date, branch_code, document_number, sequence").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find payables: %w", err)
	}
	out := make([]ledger.PayableRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Count returns the number of stored rows
func (s *GormPayableStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.PayableModel{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count payables: %w", err)
	}
	return n, nil
}

var _ ledger.PayableStore = (*GormPayableStore)(nil)
