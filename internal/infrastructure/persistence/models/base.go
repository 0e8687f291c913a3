package models

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel provides the surrogate key and audit timestamp shared by the
// mirrored ledger tables.
type BaseModel struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	SyncedAt time.Time `gorm:"not null"`
}

func newBase(id uuid.UUID, syncedAt time.Time) BaseModel {
	if id == uuid.Nil {
		id = uuid.New()
	}
	return BaseModel{ID: id, SyncedAt: syncedAt}
}

// All returns every model managed by the local store, in migration order
func All() []any {
	return []any{
		&ReceivableModel{},
		&PayableModel{},
		&FinancialPlanModel{},
		&CostCenterModel{},
		&SyncRunModel{},
		&CardReceivableModel{},
	}
}
