package models

import (
	"encoding/json"
	"time"

	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SyncRunModel is the append-only audit row of a synchronization run
type SyncRunModel struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	EntityType   string         `gorm:"type:varchar(30);not null;index:idx_sync_runs_entity_started,priority:1"`
	Period       string         `gorm:"type:varchar(7)"`
	Status       string         `gorm:"type:varchar(10);not null"`
	StartedAt    time.Time      `gorm:"not null;index:idx_sync_runs_entity_started,priority:2,sort:desc"`
	FinishedAt   *time.Time
	RowsInserted int64          `gorm:"not null;default:0"`
	RowsDeleted  int64          `gorm:"not null;default:0"`
	DurationMs   int64          `gorm:"not null;default:0"`
	ErrorMessage string         `gorm:"type:text"`
	ErrorStack   string         `gorm:"type:text"`
	ExecutedBy   string         `gorm:"type:varchar(100);not null;default:'system'"`
	Details      datatypes.JSON
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// SyncRunModelFromDomain creates a persistence model from a sync run
func SyncRunModelFromDomain(r *ledger.SyncRun) (*SyncRunModel, error) {
	m := &SyncRunModel{
		ID:           r.ID,
		EntityType:   string(r.EntityType),
		Period:       r.Period,
		Status:       string(r.Status),
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		RowsInserted: r.RowsInserted,
		RowsDeleted:  r.RowsDeleted,
		DurationMs:   r.DurationMs,
		ErrorMessage: r.ErrorMessage,
		ErrorStack:   r.ErrorStack,
		ExecutedBy:   r.ExecutedBy,
	}
	if len(r.Steps) > 0 {
		raw, err := json.Marshal(r.Steps)
		if err != nil {
			return nil, err
		}
		m.Details = datatypes.JSON(raw)
	}
	return m, nil
}

// ToDomain converts the persistence model to a sync run
func (m *SyncRunModel) ToDomain() (*ledger.SyncRun, error) {
	r := &ledger.SyncRun{
		ID:           m.ID,
		EntityType:   ledger.EntityType(m.EntityType),
		Period:       m.Period,
		Status:       ledger.SyncStatus(m.Status),
		StartedAt:    m.StartedAt,
		FinishedAt:   m.FinishedAt,
		RowsInserted: m.RowsInserted,
		RowsDeleted:  m.RowsDeleted,
		DurationMs:   m.DurationMs,
		ErrorMessage: m.ErrorMessage,
		ErrorStack:   m.ErrorStack,
		ExecutedBy:   m.ExecutedBy,
	}
	if len(m.Details) > 0 {
		if err := json.Unmarshal(m.Details, &r.Steps); err != nil {
			return nil, err
		}
	}
	return r, nil
}
