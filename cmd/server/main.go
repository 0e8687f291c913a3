package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cardapp "github.com/finsync/backend/internal/application/cardreceivable"
	"github.com/finsync/backend/internal/application/dashboard"
	"github.com/finsync/backend/internal/application/ledgersync"
	"github.com/finsync/backend/internal/infrastructure/cache"
	"github.com/finsync/backend/internal/infrastructure/config"
	"github.com/finsync/backend/internal/infrastructure/logger"
	"github.com/finsync/backend/internal/infrastructure/persistence"
	"github.com/finsync/backend/internal/infrastructure/scheduler"
	"github.com/finsync/backend/internal/infrastructure/source"
	"github.com/finsync/backend/internal/infrastructure/storage"
	"github.com/finsync/backend/internal/infrastructure/telemetry"
	"github.com/finsync/backend/internal/infrastructure/vision"
	"github.com/finsync/backend/internal/interfaces/http/handler"
	"github.com/finsync/backend/internal/interfaces/http/middleware"
	"github.com/finsync/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	tel, err := telemetry.Setup(ctx, telemetry.ConfigFrom(cfg.Telemetry), baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log := tel.Logs.Bridge(baseLog, zapcore.InfoLevel)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			baseLog.Error("Error shutting down telemetry", zap.Error(err))
		}
		_ = log.Sync()
	}()

	log.Info("Starting finsync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("timezone", cfg.App.Timezone),
	)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfigFrom(cfg.Profiling, cfg.App.Env), log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.SpanProfilesWanted() {
		tel.Tracer.EnableSpanProfiles()
	}

	// Local store
	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:        log,
		LogLevel:      logger.MapGormLogLevel(cfg.Log.Level),
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBName:          "local",
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// External ledger
	sourceDB, err := source.Open(&cfg.Source, log)
	if err != nil {
		log.Fatal("Failed to open ledger source", zap.Error(err))
	}
	if err := telemetry.RegisterDBTracing(sourceDB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBName:          "source",
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		log.Fatal("Failed to register source tracing", zap.Error(err))
	}
	reader := source.NewReader(sourceDB,
		source.WithCompanies(cfg.Sync.Companies),
		source.WithQueryTimeout(cfg.Source.QueryTimeout),
	)

	receivableStore := persistence.NewGormReceivableStore(db.DB, cfg.Sync.BatchSize)
	payableStore := persistence.NewGormPayableStore(db.DB, cfg.Sync.BatchSize)
	referenceStore := persistence.NewGormReferenceStore(db.DB, cfg.Sync.BatchSize)
	runRepo := persistence.NewGormSyncRunRepository(db.DB)
	cardRepo := persistence.NewGormCardReceivableRepository(db.DB)

	locker, closeLocker, err := cache.NewLockerFactory(cfg.Sync, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).Create()
	if err != nil {
		log.Fatal("Failed to create sync locker", zap.Error(err))
	}
	defer func() {
		if err := closeLocker(); err != nil {
			log.Error("Error closing sync locker", zap.Error(err))
		}
	}()

	meter := tel.Meter.Meter("finsync")
	syncMetrics, err := telemetry.NewSyncMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	// Application services
	syncService := ledgersync.NewService(reader, receivableStore, payableStore, referenceStore, runRepo,
		ledgersync.WithBranches(cfg.Sync.Branches),
		ledgersync.WithLocker(locker),
		ledgersync.WithMetrics(syncMetrics),
		ledgersync.WithLogger(log),
	)
	dashboardService := dashboard.NewService(receivableStore, payableStore, referenceStore,
		dashboard.WithLocation(cfg.App.Location()),
		dashboard.WithLogger(log),
	)
	cardService := newCardService(ctx, cfg, cardRepo, log)

	syncHandlerOpts := []handler.SyncHandlerOption{
		handler.WithSyncLocation(cfg.App.Location()),
		handler.WithDefaultExecutor(cfg.Sync.ExecutedBy),
	}

	// Daily and manual background synchronization
	if cfg.Scheduler.Enabled {
		syncScheduler := scheduler.NewScheduler(scheduler.ConfigFrom(cfg.Scheduler), ledgersync.NewJobExecutor(syncService), log)
		if err := syncScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
		trigger := scheduler.NewCronTrigger(scheduler.CronTriggerConfig{
			DailyHour:     cfg.Scheduler.DailyHour,
			DailyMinute:   cfg.Scheduler.DailyMinute,
			Location:      cfg.App.Location(),
			CheckInterval: time.Minute,
		}, syncScheduler, log)
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start cron trigger", zap.Error(err))
		}
		syncHandlerOpts = append(syncHandlerOpts, handler.WithJobTrigger(trigger))
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := trigger.Stop(stopCtx); err != nil {
				log.Error("Error stopping cron trigger", zap.Error(err))
			}
			if err := syncScheduler.Stop(stopCtx); err != nil {
				log.Error("Error stopping sync scheduler", zap.Error(err))
			}
		}()
		log.Info("Sync scheduler started",
			zap.Int("daily_hour", cfg.Scheduler.DailyHour),
			zap.Int("daily_minute", cfg.Scheduler.DailyMinute),
		)
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName:    telemetry.ConfigFrom(cfg.Telemetry).ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		Meter:          meter,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		CORS: middleware.CORSConfig{
			AllowOrigins: cfg.HTTP.CORSAllowOrigins,
			AllowMethods: cfg.HTTP.CORSAllowMethods,
			AllowHeaders: cfg.HTTP.CORSAllowHeaders,
		},
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, router.Handlers{
		Health:         handler.NewHealthHandler(db),
		Sync:           handler.NewSyncHandler(syncService, syncHandlerOpts...),
		Dashboard:      handler.NewDashboardHandler(dashboardService),
		CardReceivable: handler.NewCardReceivableHandler(cardService, cfg.HTTP.MaxUploadImages),
	}, log)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newCardService wires the calendar extractor and the image archive. Without
// a vision API key uploads are rejected and only manual entries work.
func newCardService(ctx context.Context, cfg *config.Config, repo *persistence.GormCardReceivableRepository, log *zap.Logger) *cardapp.Service {
	var extractor cardapp.Extractor
	if cfg.Vision.APIKey != "" {
		ex, err := vision.NewExtractor(cfg.Vision, log)
		if err != nil {
			log.Fatal("Failed to create calendar extractor", zap.Error(err))
		}
		extractor = ex
	} else {
		log.Warn("Vision API key not configured, calendar uploads are disabled")
	}

	var archive cardapp.ImageArchive = storage.NopImageArchive{}
	if cfg.Storage.Enabled {
		s3, err := storage.NewS3ImageArchive(ctx, &cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create image archive", zap.Error(err))
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			log.Warn("Image archive bucket check failed", zap.String("bucket", s3.Bucket()), zap.Error(err))
		}
		archive = s3
	}

	return cardapp.NewService(repo, extractor, cardapp.WithArchive(archive), cardapp.WithLogger(log))
}
