// Command sync runs one synchronization against the external ledger and
// exits, for cron jobs and operators.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/finsync/backend/internal/application/ledgersync"
	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/finsync/backend/internal/infrastructure/cache"
	"github.com/finsync/backend/internal/infrastructure/config"
	"github.com/finsync/backend/internal/infrastructure/logger"
	"github.com/finsync/backend/internal/infrastructure/persistence"
	"github.com/finsync/backend/internal/infrastructure/source"
	"go.uber.org/zap"
)

func main() {
	var (
		entityFlag string
		periodFlag string
		executedBy string
	)
	flag.StringVar(&entityFlag, "type", string(ledger.EntityAll), "receivables, payables, reference_data or all")
	flag.StringVar(&periodFlag, "period", "", "Period as YYYY-MM (default: current month)")
	flag.StringVar(&executedBy, "executed-by", "cli", "Recorded as the author of the run")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: "stderr",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	entity, err := ledger.ParseEntityType(entityFlag)
	if err != nil {
		log.Fatal("Invalid type", zap.String("type", entityFlag), zap.Error(err))
	}
	period := ledger.PeriodOf(time.Now().In(cfg.App.Location()))
	if periodFlag != "" {
		if period, err = ledger.ParsePeriod(periodFlag); err != nil {
			log.Fatal("Invalid period", zap.String("period", periodFlag), zap.Error(err))
		}
	}

	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:   log,
		LogLevel: logger.MapGormLogLevel(cfg.Log.Level),
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	sourceDB, err := source.Open(&cfg.Source, log)
	if err != nil {
		log.Fatal("Failed to open ledger source", zap.Error(err))
	}

	// the API server may be syncing too; only a shared backend sees its locks
	locker, closeLocker, err := cache.NewLockerFactory(cfg.Sync, cfg.Redis, cache.WithLogger(log)).Create()
	if err != nil {
		log.Fatal("Failed to create sync locker", zap.Error(err))
	}
	defer func() { _ = closeLocker() }()

	service := ledgersync.NewService(
		source.NewReader(sourceDB,
			source.WithCompanies(cfg.Sync.Companies),
			source.WithQueryTimeout(cfg.Source.QueryTimeout),
		),
		persistence.NewGormReceivableStore(db.DB, cfg.Sync.BatchSize),
		persistence.NewGormPayableStore(db.DB, cfg.Sync.BatchSize),
		persistence.NewGormReferenceStore(db.DB, cfg.Sync.BatchSize),
		persistence.NewGormSyncRunRepository(db.DB),
		ledgersync.WithBranches(cfg.Sync.Branches),
		ledgersync.WithLocker(locker),
		ledgersync.WithLogger(log),
	)

	// a started run always completes; source.query_timeout bounds each ERP query
	res, runErr := service.Run(context.Background(), entity, period, executedBy)
	if res != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
	}
	if runErr != nil {
		log.Error("Synchronization failed",
			zap.String("type", string(entity)),
			zap.String("period", period.String()),
			zap.Error(runErr))
		_ = log.Sync()
		_ = db.Close()
		os.Exit(1)
	}
}
