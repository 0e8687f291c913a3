package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/finsync/backend/internal/domain/ledger"
	"go.uber.org/zap"
)

// CronTriggerConfig holds configuration for the daily trigger
type CronTriggerConfig struct {
	// DailyHour and DailyMinute are the local time of the daily run (24h)
	DailyHour   int
	DailyMinute int

	// Location is the time zone the daily time and the current period are read in
	Location *time.Location

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration
}

// DefaultCronTriggerConfig returns default cron trigger configuration
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		DailyHour:     2,
		DailyMinute:   0,
		Location:      time.UTC,
		CheckInterval: time.Minute,
	}
}

// CronTrigger submits a full synchronization of the current period once a day
type CronTrigger struct {
	config    CronTriggerConfig
	scheduler *Scheduler
	logger    *zap.Logger
	now       func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewCronTrigger creates a new cron trigger
func NewCronTrigger(config CronTriggerConfig, scheduler *Scheduler, logger *zap.Logger) *CronTrigger {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	return &CronTrigger{
		config:    config,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
	}
}

// Start starts the cron trigger
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Cron trigger started",
		zap.Int("daily_hour", c.config.DailyHour),
		zap.Int("daily_minute", c.config.DailyMinute),
		zap.String("timezone", c.config.Location.String()),
	)

	return nil
}

// Stop stops the cron trigger
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger()
		}
	}
}

// checkAndTrigger submits the daily job once the configured time has passed
// and it has not run yet today. Reaching the time late (a missed tick or a
// restart after the hour) still triggers that day.
func (c *CronTrigger) checkAndTrigger() bool {
	now := c.now().In(c.config.Location)
	today := now.Format(time.DateOnly)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastRunDate == today {
		return false
	}

	due := time.Date(now.Year(), now.Month(), now.Day(), c.config.DailyHour, c.config.DailyMinute, 0, 0, c.config.Location)
	if now.Before(due) {
		return false
	}

	period := ledger.PeriodOf(now)
	if _, err := c.scheduler.Schedule(ledger.EntityAll, period, TriggerDaily); err != nil {
		c.logger.Error("Failed to schedule daily synchronization",
			zap.String("period", period.String()),
			zap.Error(err))
		return false
	}
	c.lastRunDate = today
	c.logger.Info("Daily synchronization scheduled", zap.String("period", period.String()))
	return true
}

// TriggerManual queues a synchronization outside the daily schedule. The
// returned Job is a copy taken before submission; workers own the queued one.
func (c *CronTrigger) TriggerManual(entity ledger.EntityType, period ledger.Period, executedBy string) (Job, error) {
	job := NewJob(entity, period, TriggerManual, c.scheduler.config.RetryAttempts)
	if executedBy != "" {
		job.ExecutedBy = executedBy
	}
	queued := *job
	if err := c.scheduler.SubmitJob(job); err != nil {
		return Job{}, err
	}
	c.logger.Info("Manual synchronization queued",
		zap.String("job_id", job.ID.String()),
		zap.String("entity_type", string(entity)),
		zap.String("period", period.String()),
		zap.String("executed_by", queued.ExecutedBy))
	return queued, nil
}
