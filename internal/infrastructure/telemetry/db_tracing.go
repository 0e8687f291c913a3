package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	DBName          string // "local" or "source"; distinguishes the two databases in traces
	SlowQueryThresh time.Duration
	// WithVariables includes bound values in the SQL attribute. Off by default:
	// ERP rows carry client names and amounts.
	WithVariables bool
}

// RegisterDBTracing installs otelgorm on db plus a callback that flags slow
// statements on the active span.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.WithVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	if cfg.SlowQueryThresh > 0 {
		if err := registerSlowQueryCallbacks(db, cfg.SlowQueryThresh); err != nil {
			return err
		}
	}

	logger.Info("Database tracing enabled",
		zap.String("db_name", cfg.DBName),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh))
	return nil
}

type queryStartKey struct{}

func registerSlowQueryCallbacks(db *gorm.DB, threshold time.Duration) error {
	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) { markSlowQuery(tx, threshold) }

	cb := db.Callback()
	steps := []struct {
		op  string
		err error
	}{
		{"query", cb.Query().Before("gorm:query").Register("finsync:before_query", before)},
		{"query", cb.Query().After("gorm:query").Register("finsync:after_query", after)},
		{"create", cb.Create().Before("gorm:create").Register("finsync:before_create", before)},
		{"create", cb.Create().After("gorm:create").Register("finsync:after_create", after)},
		{"delete", cb.Delete().Before("gorm:delete").Register("finsync:before_delete", before)},
		{"delete", cb.Delete().After("gorm:delete").Register("finsync:after_delete", after)},
		{"update", cb.Update().Before("gorm:update").Register("finsync:before_update", before)},
		{"update", cb.Update().After("gorm:update").Register("finsync:after_update", after)},
		{"row", cb.Row().Before("gorm:row").Register("finsync:before_row", before)},
		{"row", cb.Row().After("gorm:row").Register("finsync:after_row", after)},
		{"raw", cb.Raw().Before("gorm:raw").Register("finsync:before_raw", before)},
		{"raw", cb.Raw().After("gorm:raw").Register("finsync:after_raw", after)},
	}
	var errs []error
	for _, s := range steps {
		if s.err != nil {
			errs = append(errs, fmt.Errorf("register %s callback: %w", s.op, s.err))
		}
	}
	return errors.Join(errs...)
}

func markSlowQuery(tx *gorm.DB, threshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > threshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("threshold_ms", threshold.Milliseconds()),
			attribute.Int64("rows_affected", tx.Statement.RowsAffected),
		))
	}
}
