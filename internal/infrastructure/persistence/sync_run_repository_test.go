package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/finsync/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormSyncRunRepository_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormSyncRunRepository(db)
	ctx := context.Background()
	start := time.Date(2025, 6, 10, 5, 0, 0, 0, time.UTC)

	run := ledger.NewSyncRun(ledger.EntityAll, "2025-06", "")
	require.NoError(t, run.Start(start))
	require.NoError(t, repo.Create(ctx, run))

	run.AddStep(ledger.StepSummary{EntityType: ledger.EntityReceivables, Success: true, RowsInserted: 12})
	run.AddStep(ledger.StepSummary{EntityType: ledger.EntityPayables, Success: false, Message: "boom"})
	require.NoError(t, run.Fail(start.Add(1500*time.Millisecond), "payables failed", "stack"))
	require.NoError(t, repo.Update(ctx, run))

	got, err := repo.FindLatest(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, ledger.SyncStatusError, got.Status)
	assert.Equal(t, int64(1500), got.DurationMs)
	assert.Equal(t, "system", got.ExecutedBy)
	assert.Equal(t, "stack", got.ErrorStack)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, ledger.EntityPayables, got.Steps[1].EntityType)
	assert.Equal(t, "boom", got.Steps[1].Message)
}

func TestGormSyncRunRepository_FindLatestByEntity(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormSyncRunRepository(db)
	ctx := context.Background()
	base := time.Date(2025, 6, 10, 5, 0, 0, 0, time.UTC)

	for i, entity := range []ledger.EntityType{ledger.EntityReceivables, ledger.EntityPayables, ledger.EntityReceivables} {
		run := ledger.NewSyncRun(entity, "2025-06", "ops")
		require.NoError(t, run.Start(base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, run.Succeed(base.Add(time.Duration(i)*time.Minute+time.Second), int64(i), 0))
		require.NoError(t, repo.Create(ctx, run))
	}

	entity := ledger.EntityReceivables
	got, err := repo.FindLatest(ctx, &entity)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.RowsInserted)

	missing := ledger.EntityCostCenter
	_, err = repo.FindLatest(ctx, &missing)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	recent, err := repo.FindRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(2), recent[0].RowsInserted)
	assert.Equal(t, ledger.EntityPayables, recent[1].EntityType)
}

func TestGormSyncRunRepository_UpdateUnknownRun(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormSyncRunRepository(db)

	run := ledger.NewSyncRun(ledger.EntityPayables, "2025-06", "")
	require.NoError(t, run.Start(time.Now()))

	err := repo.Update(context.Background(), run)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
