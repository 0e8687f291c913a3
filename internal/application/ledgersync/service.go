// Package ledgersync sequences the synchronization of ledger data from the
// ERP source into the local store and records every run in the audit log.
package ledgersync

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/finsync/backend/internal/domain/shared"
	"github.com/finsync/backend/internal/infrastructure/cache"
	"github.com/finsync/backend/internal/infrastructure/logger"
	"github.com/finsync/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Service is the synchronization orchestrator
type Service struct {
	source      ledger.Source
	receivables ledger.ReceivableStore
	payables    ledger.PayableStore
	reference   ledger.ReferenceStore
	runs        ledger.SyncRunRepository
	locker      cache.Locker
	metrics     *telemetry.SyncMetrics
	branches    []int
	keyPrefix   string
	now         func() time.Time
	logger      *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithBranches overrides the branch set of the ledger windows
func WithBranches(branches []int) Option {
	return func(s *Service) {
		if len(branches) > 0 {
			s.branches = append([]int(nil), branches...)
		}
	}
}

// WithLocker sets the per-entity-type guard
func WithLocker(locker cache.Locker) Option {
	return func(s *Service) { s.locker = locker }
}

// WithMetrics records run outcomes
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the fallback logger used when the context carries none
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithKeyPrefix sets the lock key prefix
func WithKeyPrefix(prefix string) Option {
	return func(s *Service) { s.keyPrefix = prefix }
}

// NewService creates the orchestrator. Without WithLocker an in-process
// locker is used.
func NewService(
	source ledger.Source,
	receivables ledger.ReceivableStore,
	payables ledger.PayableStore,
	reference ledger.ReferenceStore,
	runs ledger.SyncRunRepository,
	opts ...Option,
) *Service {
	s := &Service{
		source:      source,
		receivables: receivables,
		payables:    payables,
		reference:   reference,
		runs:        runs,
		branches:    ledger.DefaultBranches,
		keyPrefix:   cache.DefaultKeyPrefix,
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = cache.NewInMemoryLocker()
	}
	return s
}

// Branches returns the branch set used for ledger windows
func (s *Service) Branches() []int {
	return append([]int(nil), s.branches...)
}

// SyncReceivables replaces the receivable rows whose adjusted date falls in period
func (s *Service) SyncReceivables(ctx context.Context, period ledger.Period, executedBy string) (*Result, error) {
	return s.locked(ctx, ledger.EntityReceivables, func(ctx context.Context) (*Result, error) {
		res, err := s.execute(ctx, ledger.EntityReceivables, period.String(), executedBy,
			func(ctx context.Context, _ *ledger.SyncRun) (ledger.ReplaceResult, error) {
				return s.replaceReceivables(ctx, period)
			})
		return &res, err
	})
}

// SyncPayables replaces the payable rows of period and the three months before it
func (s *Service) SyncPayables(ctx context.Context, period ledger.Period, executedBy string) (*Result, error) {
	return s.locked(ctx, ledger.EntityPayables, func(ctx context.Context) (*Result, error) {
		res, err := s.execute(ctx, ledger.EntityPayables, period.String(), executedBy,
			func(ctx context.Context, _ *ledger.SyncRun) (ledger.ReplaceResult, error) {
				return s.replacePayables(ctx, period)
			})
		return &res, err
	})
}

// SyncReferenceData reloads the financial plan and then the cost centers.
// Each table gets its own run plus an umbrella run of type reference_data.
func (s *Service) SyncReferenceData(ctx context.Context, executedBy string) (*Result, error) {
	return s.locked(ctx, ledger.EntityReferenceData, func(ctx context.Context) (*Result, error) {
		steps := []step{
			{entity: ledger.EntityFinancialPlan, run: func(ctx context.Context) (*Result, error) {
				res, err := s.execute(ctx, ledger.EntityFinancialPlan, "", executedBy,
					func(ctx context.Context, _ *ledger.SyncRun) (ledger.ReplaceResult, error) {
						return s.reloadFinancialPlan(ctx)
					})
				return &res, err
			}},
			{entity: ledger.EntityCostCenter, run: func(ctx context.Context) (*Result, error) {
				res, err := s.execute(ctx, ledger.EntityCostCenter, "", executedBy,
					func(ctx context.Context, _ *ledger.SyncRun) (ledger.ReplaceResult, error) {
						return s.reloadCostCenters(ctx)
					})
				return &res, err
			}},
		}
		return s.composite(ctx, ledger.EntityReferenceData, "", executedBy, steps)
	})
}

// SyncAll runs reference data, receivables and payables in that order. The
// first failing step stops the sequence; steps already committed stay.
func (s *Service) SyncAll(ctx context.Context, period ledger.Period, executedBy string) (*Result, error) {
	return s.locked(ctx, ledger.EntityAll, func(ctx context.Context) (*Result, error) {
		steps := []step{
			{entity: ledger.EntityReferenceData, run: func(ctx context.Context) (*Result, error) {
				return s.SyncReferenceData(ctx, executedBy)
			}},
			{entity: ledger.EntityReceivables, run: func(ctx context.Context) (*Result, error) {
				return s.SyncReceivables(ctx, period, executedBy)
			}},
			{entity: ledger.EntityPayables, run: func(ctx context.Context) (*Result, error) {
				return s.SyncPayables(ctx, period, executedBy)
			}},
		}
		return s.composite(ctx, ledger.EntityAll, period.String(), executedBy, steps)
	})
}

// LastStatus returns the most recent run, optionally of one entity type.
// It returns nil when nothing has run yet.
func (s *Service) LastStatus(ctx context.Context, entity *ledger.EntityType) (*RunResponse, error) {
	run, err := s.runs.FindLatest(ctx, entity)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return ToRunResponse(run), nil
}

// History returns up to limit runs, newest first
func (s *Service) History(ctx context.Context, limit int) ([]RunResponse, error) {
	runs, err := s.runs.FindRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunResponse, 0, len(runs))
	for i := range runs {
		out = append(out, *ToRunResponse(&runs[i]))
	}
	return out, nil
}

// Run dispatches by entity type; used by the scheduler and the CLI
func (s *Service) Run(ctx context.Context, entity ledger.EntityType, period ledger.Period, executedBy string) (*Result, error) {
	switch entity {
	case ledger.EntityReceivables:
		return s.SyncReceivables(ctx, period, executedBy)
	case ledger.EntityPayables:
		return s.SyncPayables(ctx, period, executedBy)
	case ledger.EntityReferenceData, ledger.EntityFinancialPlan, ledger.EntityCostCenter:
		return s.SyncReferenceData(ctx, executedBy)
	case ledger.EntityAll:
		return s.SyncAll(ctx, period, executedBy)
	}
	return nil, shared.NewDomainError(shared.CodeInvalidInput, "unknown entity type: "+string(entity))
}

func (s *Service) replaceReceivables(ctx context.Context, period ledger.Period) (ledger.ReplaceResult, error) {
	w := ledger.ReceivableWindow(period, s.branches)
	rows, err := s.source.FetchReceivables(ctx, w)
	if err != nil {
		return ledger.ReplaceResult{}, err
	}
	rows, dropped := ledger.DedupeReceivables(rows)
	if dropped > 0 {
		s.log(ctx).Warn("duplicate receivable titles dropped", zap.Int("dropped", dropped))
	}
	return s.receivables.ReplaceWindow(ctx, w, rows)
}

func (s *Service) replacePayables(ctx context.Context, period ledger.Period) (ledger.ReplaceResult, error) {
	w := ledger.PayableWindow(period, s.branches)
	rows, err := s.source.FetchPayables(ctx, w)
	if err != nil {
		return ledger.ReplaceResult{}, err
	}
	canonical := rows[:0:0]
	for _, r := range rows {
		if r.IsCanonical() {
			canonical = append(canonical, r)
		}
	}
	return s.payables.ReplaceWindow(ctx, w, canonical)
}

func (s *Service) reloadFinancialPlan(ctx context.Context) (ledger.ReplaceResult, error) {
	entries, err := s.source.FetchFinancialPlan(ctx)
	if err != nil {
		return ledger.ReplaceResult{}, err
	}
	return s.reference.ReloadFinancialPlan(ctx, entries)
}

func (s *Service) reloadCostCenters(ctx context.Context) (ledger.ReplaceResult, error) {
	entries, err := s.source.FetchCostCenters(ctx)
	if err != nil {
		return ledger.ReplaceResult{}, err
	}
	return s.reference.ReloadCostCenters(ctx, entries)
}

// locked runs fn while holding the guard of entity. A held guard fails fast
// with SYNC_IN_PROGRESS before any run is recorded. Once started, a run is
// not cancelled by its caller: ctx keeps its values but loses cancellation.
func (s *Service) locked(ctx context.Context, entity ledger.EntityType, fn func(context.Context) (*Result, error)) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	release, err := s.locker.Acquire(ctx, s.keyPrefix+string(entity))
	if err != nil {
		if errors.Is(err, cache.ErrLockNotAcquired) {
			s.metrics.RecordContention(ctx, string(entity))
			return nil, shared.NewDomainError(shared.CodeSyncInProgress,
				fmt.Sprintf("a %s synchronization is already running", entity))
		}
		return nil, fmt.Errorf("acquire %s sync lock: %w", entity, err)
	}
	defer func() {
		if err := release(ctx); err != nil {
			s.log(ctx).Warn("failed to release sync lock", zap.String("entity_type", string(entity)), zap.Error(err))
		}
	}()
	return fn(ctx)
}

type replaceFunc func(ctx context.Context, run *ledger.SyncRun) (ledger.ReplaceResult, error)

// execute records a run around fn: created and started before, updated
// exactly once after, with the error message and stack on failure.
func (s *Service) execute(ctx context.Context, entity ledger.EntityType, period, executedBy string, fn replaceFunc) (Result, error) {
	run := ledger.NewSyncRun(entity, period, executedBy)
	if err := run.Start(s.now()); err != nil {
		return Result{EntityType: entity, Period: period}, err
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return Result{EntityType: entity, Period: period}, shared.StoreWriteFailure(fmt.Errorf("create sync run: %w", err))
	}

	ctx = logger.WithSyncRunID(ctx, run.ID.String())
	ctx, span := telemetry.StartSpan(ctx, "ledgersync."+string(entity),
		attribute.String(telemetry.SpanAttrEntityType, string(entity)),
		attribute.String(telemetry.SpanAttrPeriod, period),
		attribute.String(telemetry.SpanAttrRunID, run.ID.String()),
	)
	defer span.End()

	log := s.log(ctx).With(zap.String("entity_type", string(entity)), zap.String("period", period))
	log.Info("synchronization started", zap.String("executed_by", run.ExecutedBy))

	var (
		counts ledger.ReplaceResult
		stack  string
		err    error
	)
	telemetry.WithSyncLabels(ctx, string(entity), period, func(ctx context.Context) {
		counts, stack, err = guard(ctx, run, fn)
	})

	if err != nil {
		if stack == "" {
			stack = string(debug.Stack())
		}
		_ = run.Fail(s.now(), err.Error(), stack)
		telemetry.RecordError(span, err)
		log.Error("synchronization failed", zap.Error(err), zap.Int64("duration_ms", run.DurationMs))
	} else {
		_ = run.Succeed(s.now(), counts.RowsInserted, counts.RowsDeleted)
		span.SetAttributes(
			attribute.Int64(telemetry.SpanAttrRowsInserted, counts.RowsInserted),
			attribute.Int64(telemetry.SpanAttrRowsDeleted, counts.RowsDeleted),
		)
		telemetry.SetOK(span)
		log.Info("synchronization finished",
			zap.Int64("rows_inserted", counts.RowsInserted),
			zap.Int64("rows_deleted", counts.RowsDeleted),
			zap.Duration("duration", time.Duration(run.DurationMs)*time.Millisecond))
	}

	if uerr := s.runs.Update(context.WithoutCancel(ctx), run); uerr != nil {
		log.Error("failed to record sync run outcome", zap.Error(uerr))
	}
	s.metrics.RecordRun(ctx, string(entity), string(run.Status), run.RowsInserted, run.RowsDeleted,
		time.Duration(run.DurationMs)*time.Millisecond)

	res := resultFromRun(run)
	if err == nil {
		res.Message = fmt.Sprintf("%d rows inserted, %d rows deleted", counts.RowsInserted, counts.RowsDeleted)
	}
	return res, err
}

// guard converts a panic inside fn into an error carrying the panic stack
func guard(ctx context.Context, run *ledger.SyncRun, fn replaceFunc) (counts ledger.ReplaceResult, stack string, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack = string(debug.Stack())
			err = fmt.Errorf("panic during %s synchronization: %v", run.EntityType, r)
		}
	}()
	counts, err = fn(ctx, run)
	return counts, "", err
}

type step struct {
	entity ledger.EntityType
	run    func(ctx context.Context) (*Result, error)
}

// composite runs steps in order under an umbrella run whose details list
// every executed step.
func (s *Service) composite(ctx context.Context, entity ledger.EntityType, period, executedBy string, steps []step) (*Result, error) {
	var results []Result
	res, err := s.execute(ctx, entity, period, executedBy,
		func(ctx context.Context, run *ledger.SyncRun) (ledger.ReplaceResult, error) {
			var total ledger.ReplaceResult
			for _, st := range steps {
				r, err := st.run(ctx)
				if r != nil {
					results = append(results, *r)
					run.AddStep(r.step())
					total.RowsInserted += r.RowsInserted
					total.RowsDeleted += r.RowsDeleted
				}
				if err != nil {
					return total, fmt.Errorf("%s: %w", st.entity, err)
				}
			}
			return total, nil
		})
	res.Steps = results
	return &res, err
}

func (s *Service) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, logger.FromContextOr(ctx, s.logger))
}
