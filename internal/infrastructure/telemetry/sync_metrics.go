package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// SyncMetrics records the outcome of synchronization runs
type SyncMetrics struct {
	runs         *Counter
	rowsInserted *Counter
	rowsDeleted  *Counter
	contention   *Counter
	duration     *Histogram
}

// NewSyncMetrics registers the synchronization instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	var (
		m   SyncMetrics
		err error
	)
	if m.runs, err = NewCounter(meter, "finsync.sync.runs", "Synchronization runs by entity type and status", "{run}"); err != nil {
		return nil, err
	}
	if m.rowsInserted, err = NewCounter(meter, "finsync.sync.rows_inserted", "Rows inserted into the local store", "{row}"); err != nil {
		return nil, err
	}
	if m.rowsDeleted, err = NewCounter(meter, "finsync.sync.rows_deleted", "Rows deleted from the local store", "{row}"); err != nil {
		return nil, err
	}
	if m.contention, err = NewCounter(meter, "finsync.sync.lock_contention", "Synchronizations rejected because one was already running", "{run}"); err != nil {
		return nil, err
	}
	m.duration, err = NewHistogram(meter, HistogramOpts{
		Name:        "finsync.sync.duration",
		Description: "Synchronization run duration",
		Unit:        "s",
		Boundaries:  SyncDurationBuckets,
	})
	if err != nil {
		return nil, fmt.Errorf("sync metrics: %w", err)
	}
	return &m, nil
}

// RecordRun records one finished run
func (m *SyncMetrics) RecordRun(ctx context.Context, entity, status string, inserted, deleted int64, d time.Duration) {
	if m == nil {
		return
	}
	entityAttr := AttrEntityType.String(entity)
	m.runs.Inc(ctx, entityAttr, AttrStatus.String(status))
	m.rowsInserted.Add(ctx, inserted, entityAttr)
	m.rowsDeleted.Add(ctx, deleted, entityAttr)
	m.duration.RecordDuration(ctx, d, entityAttr, AttrStatus.String(status))
}

// RecordContention counts a run rejected by the per-entity lock
func (m *SyncMetrics) RecordContention(ctx context.Context, entity string) {
	if m == nil {
		return
	}
	m.contention.Inc(ctx, AttrEntityType.String(entity))
}
