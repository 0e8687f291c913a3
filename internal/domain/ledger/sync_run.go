package ledger

import (
	"time"

	"github.com/finsync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// EntityType names what a synchronization run refreshes
type EntityType string

const (
	EntityReceivables   EntityType = "receivables"
	EntityPayables      EntityType = "payables"
	EntityCostCenter    EntityType = "cost_center"
	EntityFinancialPlan EntityType = "financial_plan"
	EntityReferenceData EntityType = "reference_data"
	EntityAll           EntityType = "all"
)

// ParseEntityType validates an entity type string
func ParseEntityType(s string) (EntityType, error) {
	switch t := EntityType(s); t {
	case EntityReceivables, EntityPayables, EntityCostCenter,
		EntityFinancialPlan, EntityReferenceData, EntityAll:
		return t, nil
	}
	return "", shared.NewDomainError(shared.CodeInvalidInput, "unknown entity type: "+s)
}

// SyncStatus is the lifecycle state of a SyncRun
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusRunning SyncStatus = "running"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusError   SyncStatus = "error"
)

// IsTerminal reports whether no further transition is allowed
func (s SyncStatus) IsTerminal() bool {
	return s == SyncStatusSuccess || s == SyncStatusError
}

// StepSummary is the outcome of one step inside a composite run
type StepSummary struct {
	EntityType   EntityType `json:"entity_type"`
	Success      bool       `json:"success"`
	RowsInserted int64      `json:"rows_inserted"`
	RowsDeleted  int64      `json:"rows_deleted"`
	DurationMs   int64      `json:"duration_ms"`
	Message      string     `json:"message,omitempty"`
	RunID        uuid.UUID  `json:"run_id"`
}

// SyncRun is the audit record of one synchronization attempt
type SyncRun struct {
	ID           uuid.UUID
	EntityType   EntityType
	Period       string
	Status       SyncStatus
	StartedAt    time.Time
	FinishedAt   *time.Time
	RowsInserted int64
	RowsDeleted  int64
	DurationMs   int64
	ErrorMessage string
	ErrorStack   string
	ExecutedBy   string
	Steps        []StepSummary
}

// NewSyncRun creates a pending run
func NewSyncRun(entity EntityType, period, executedBy string) *SyncRun {
	if executedBy == "" {
		executedBy = "system"
	}
	return &SyncRun{
		ID:         uuid.New(),
		EntityType: entity,
		Period:     period,
		Status:     SyncStatusPending,
		ExecutedBy: executedBy,
	}
}

// Start moves the run to running
func (r *SyncRun) Start(now time.Time) error {
	if r.Status != SyncStatusPending {
		return shared.NewDomainError(shared.CodeInvalidState, "sync run already started")
	}
	r.Status = SyncStatusRunning
	r.StartedAt = now
	return nil
}

// Succeed closes the run successfully
func (r *SyncRun) Succeed(now time.Time, inserted, deleted int64) error {
	if err := r.finish(now); err != nil {
		return err
	}
	r.Status = SyncStatusSuccess
	r.RowsInserted = inserted
	r.RowsDeleted = deleted
	return nil
}

// Fail closes the run with an error and its stack
func (r *SyncRun) Fail(now time.Time, message, stack string) error {
	if err := r.finish(now); err != nil {
		return err
	}
	r.Status = SyncStatusError
	r.ErrorMessage = message
	r.ErrorStack = stack
	return nil
}

// AddStep appends a sub-step outcome
func (r *SyncRun) AddStep(step StepSummary) {
	r.Steps = append(r.Steps, step)
}

func (r *SyncRun) finish(now time.Time) error {
	if r.Status != SyncStatusRunning {
		return shared.NewDomainError(shared.CodeInvalidState, "sync run is not running")
	}
	r.FinishedAt = &now
	r.DurationMs = now.Sub(r.StartedAt).Milliseconds()
	return nil
}
