package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/finsync/backend/internal/domain/shared"
	"github.com/finsync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSyncRunRepository implements ledger.SyncRunRepository using GORM
type GormSyncRunRepository struct {
	db *gorm.DB
}

// NewGormSyncRunRepository creates a new GormSyncRunRepository
func NewGormSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

// Create inserts a new run record
func (r *GormSyncRunRepository) Create(ctx context.Context, run *ledger.SyncRun) error {
	m, err := models.SyncRunModelFromDomain(run)
	if err != nil {
		return fmt.Errorf("encode sync run: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return shared.StoreWriteFailure(err)
	}
	return nil
}

// Update writes the final state of a run
func (r *GormSyncRunRepository) Update(ctx context.Context, run *ledger.SyncRun) error {
	m, err := models.SyncRunModelFromDomain(run)
	if err != nil {
		return fmt.Errorf("encode sync run: %w", err)
	}
	result := r.db.WithContext(ctx).Model(&models.SyncRunModel{}).
		Where("id = ?", run.ID).
		Select("*").Omit("id").
		Updates(m)
	if result.Error != nil {
		return shared.StoreWriteFailure(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindLatest returns the most recent run, optionally of one entity type
func (r *GormSyncRunRepository) FindLatest(ctx context.Context, entity *ledger.EntityType) (*ledger.SyncRun, error) {
	query := r.db.WithContext(ctx).Order("started_at DESC")
	if entity != nil {
		query = query.Where("entity_type = ?", string(*entity))
	}
	var m models.SyncRunModel
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("find latest sync run: %w", err)
	}
	return m.ToDomain()
}

// FindRecent returns up to limit runs, newest first
func (r *GormSyncRunRepository) FindRecent(ctx context.Context, limit int) ([]ledger.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.SyncRunModel
	if err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find sync runs: %w", err)
	}
	out := make([]ledger.SyncRun, 0, len(rows))
	for i := range rows {
		run, err := rows[i].ToDomain()
		if err != nil {
			return nil, fmt.Errorf("decode sync run %s: %w", rows[i].ID, err)
		}
		out = append(out, *run)
	}
	return out, nil
}

var _ ledger.SyncRunRepository = (*GormSyncRunRepository)(nil)
