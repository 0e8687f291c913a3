// Package source reads the external ERP ledger. Every query is read-only and
// parameterized; business rules are applied by the domain, not here.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/finsync/backend/internal/domain/shared"
	"github.com/finsync/backend/internal/infrastructure/config"
	"github.com/finsync/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultCompanies are the ERP companies whose titles are mirrored
var DefaultCompanies = []int{10, 20, 30}

// Dialector picks the gorm driver for the configured ERP engine
func Dialector(cfg *config.SourceConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "sqlserver":
		return sqlserver.Open(cfg.DSN()), nil
	case "mysql":
		return mysql.Open(cfg.DSN()), nil
	case "postgres":
		return postgres.Open(cfg.DSN()), nil
	}
	return nil, fmt.Errorf("unsupported source driver %q", cfg.Driver)
}

// Open connects to the ERP database
func Open(cfg *config.SourceConfig, zl *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewSQLLogger(zl, logger.StoreERP, gormlogger.Warn),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to source: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return db, nil
}

// Reader implements ledger.Source over an ERP database
type Reader struct {
	db        *gorm.DB
	companies []int
	timeout   time.Duration
}

// Option configures a Reader
type Option func(*Reader)

// WithCompanies overrides the mirrored company codes
func WithCompanies(companies []int) Option {
	return func(r *Reader) {
		if len(companies) > 0 {
			r.companies = companies
		}
	}
}

// WithQueryTimeout bounds each source query
func WithQueryTimeout(d time.Duration) Option {
	return func(r *Reader) { r.timeout = d }
}

// NewReader creates a Reader
func NewReader(db *gorm.DB, opts ...Option) *Reader {
	r := &Reader{db: db, companies: DefaultCompanies}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// FetchReceivables returns the receivable titles whose projected-payment date
// falls in the window's raw range.
func (r *Reader) FetchReceivables(ctx context.Context, w ledger.Window) ([]ledger.ReceivableRecord, error) {
	if w.Empty() {
		return nil, nil
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rows []receivableRow
	err := r.receivableQuery(ctx, w.Branches).
		Where("tcr.DATPPT BETWEEN ? AND ?", w.RawFrom, w.RawTo).
		Scan(&rows).Error
	if err != nil {
		return nil, shared.SourceUnavailable(fmt.Errorf("fetch receivables: %w", err))
	}

	out := make([]ledger.ReceivableRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	logger.L(ctx).Debug("source receivables fetched",
		zap.Time("raw_from", w.RawFrom), zap.Time("raw_to", w.RawTo), zap.Int("rows", len(out)))
	return out, nil
}

// FetchSettledReceivables returns settled receivable titles paid in [from, to]
func (r *Reader) FetchSettledReceivables(ctx context.Context, from, to time.Time, branches []int) ([]ledger.ReceivableRecord, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rows []receivableRow
	err := r.receivableQuery(ctx, branches).
		Where("tcr.SITTIT = ?", ledger.StatusSettled).
		Where("tcr.ULTPGT BETWEEN ? AND ?", ledger.DateOnly(from), ledger.DateOnly(to)).
		Scan(&rows).Error
	if err != nil {
		return nil, shared.SourceUnavailable(fmt.Errorf("fetch settled receivables: %w", err))
	}
	out := make([]ledger.ReceivableRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// FetchPayables returns the canonical payable apportionments whose due date
// falls in the window's raw range.
func (r *Reader) FetchPayables(ctx context.Context, w ledger.Window) ([]ledger.PayableRecord, error) {
	if w.Empty() {
		return nil, nil
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rows []payableRow
	err := r.payableQuery(ctx, w.Branches).
		Where("mcp.VCTPRO BETWEEN ? AND ?", w.RawFrom, w.RawTo).
		Scan(&rows).Error
	if err != nil {
		return nil, shared.SourceUnavailable(fmt.Errorf("fetch payables: %w", err))
	}

	out := make([]ledger.PayableRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	logger.L(ctx).Debug("source payables fetched",
		zap.Time("raw_from", w.RawFrom), zap.Time("raw_to", w.RawTo), zap.Int("rows", len(out)))
	return out, nil
}

// FetchFinancialPlan returns the financial plan chart
func (r *Reader) FetchFinancialPlan(ctx context.Context) ([]ledger.FinancialPlanEntry, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rows []chartRow
	if err := r.chartQuery(ctx, ledger.FinancialPlanChart).Scan(&rows).Error; err != nil {
		return nil, shared.SourceUnavailable(fmt.Errorf("fetch financial plan: %w", err))
	}
	out := make([]ledger.FinancialPlanEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].toPlanEntry()
	}
	return out, nil
}

// FetchCostCenters returns the cost center chart
func (r *Reader) FetchCostCenters(ctx context.Context) ([]ledger.CostCenterEntry, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rows []chartRow
	if err := r.chartQuery(ctx, ledger.CostCenterChart).Scan(&rows).Error; err != nil {
		return nil, shared.SourceUnavailable(fmt.Errorf("fetch cost centers: %w", err))
	}
	out := make([]ledger.CostCenterEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].toCostCenterEntry()
	}
	return out, nil
}

var _ ledger.Source = (*Reader)(nil)
