package ledgersync

import (
	"time"

	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/google/uuid"
)

// Result is the outcome of one synchronization operation
type Result struct {
	Success      bool              `json:"success"`
	EntityType   ledger.EntityType `json:"entity_type"`
	Period       string            `json:"period,omitempty"`
	RowsInserted int64             `json:"rows_inserted"`
	RowsDeleted  int64             `json:"rows_deleted"`
	DurationMs   int64             `json:"duration_ms"`
	Message      string            `json:"message"`
	RunID        uuid.UUID         `json:"run_id"`
	Steps        []Result          `json:"steps,omitempty"`
}

func resultFromRun(run *ledger.SyncRun) Result {
	r := Result{
		Success:      run.Status == ledger.SyncStatusSuccess,
		EntityType:   run.EntityType,
		Period:       run.Period,
		RowsInserted: run.RowsInserted,
		RowsDeleted:  run.RowsDeleted,
		DurationMs:   run.DurationMs,
		RunID:        run.ID,
	}
	if !r.Success {
		r.Message = run.ErrorMessage
	}
	return r
}

func (r Result) step() ledger.StepSummary {
	return ledger.StepSummary{
		EntityType:   r.EntityType,
		Success:      r.Success,
		RowsInserted: r.RowsInserted,
		RowsDeleted:  r.RowsDeleted,
		DurationMs:   r.DurationMs,
		Message:      r.Message,
		RunID:        r.RunID,
	}
}

// RunResponse is the status view of a stored SyncRun
type RunResponse struct {
	ID           uuid.UUID            `json:"id"`
	EntityType   ledger.EntityType    `json:"entity_type"`
	Period       string               `json:"period,omitempty"`
	Status       ledger.SyncStatus    `json:"status"`
	StartedAt    time.Time            `json:"started_at"`
	FinishedAt   *time.Time           `json:"finished_at,omitempty"`
	RowsInserted int64                `json:"rows_inserted"`
	RowsDeleted  int64                `json:"rows_deleted"`
	DurationMs   int64                `json:"duration_ms"`
	ErrorMessage string               `json:"error_message,omitempty"`
	ExecutedBy   string               `json:"executed_by"`
	Steps        []ledger.StepSummary `json:"steps,omitempty"`
}

// ToRunResponse converts a SyncRun. The stack trace stays in the audit table.
func ToRunResponse(run *ledger.SyncRun) *RunResponse {
	if run == nil {
		return nil
	}
	return &RunResponse{
		ID:           run.ID,
		EntityType:   run.EntityType,
		Period:       run.Period,
		Status:       run.Status,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		RowsInserted: run.RowsInserted,
		RowsDeleted:  run.RowsDeleted,
		DurationMs:   run.DurationMs,
		ErrorMessage: run.ErrorMessage,
		ExecutedBy:   run.ExecutedBy,
		Steps:        run.Steps,
	}
}
