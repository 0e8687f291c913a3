package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// Store names tag every SQL log line with the database it ran against
const (
	StoreLocal = "local"
	StoreERP   = "erp"
)

// DefaultSlowThreshold applies when no threshold is configured
const DefaultSlowThreshold = 200 * time.Millisecond

// maxLoggedSQL bounds logged statements; batch inserts carry thousands of rows
const maxLoggedSQL = 2048

// SQLLogger routes gorm output to zap. Statements are tagged with the store,
// the statement verb and the request or sync run that issued them.
type SQLLogger struct {
	base  *zap.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

// SQLLoggerOption configures a SQLLogger
type SQLLoggerOption func(*SQLLogger)

// WithSlowThreshold sets the duration above which a statement is logged as slow.
// Zero disables slow statement reporting.
func WithSlowThreshold(threshold time.Duration) SQLLoggerOption {
	return func(l *SQLLogger) { l.slow = threshold }
}

// NewSQLLogger creates a gorm logger for one store
func NewSQLLogger(zl *zap.Logger, store string, level gormlogger.LogLevel, opts ...SQLLoggerOption) *SQLLogger {
	l := &SQLLogger{
		base:  zl.Named("sql").With(zap.String("store", store)),
		level: level,
		slow:  DefaultSlowThreshold,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogMode returns a copy at the given level
func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *SQLLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *SQLLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *SQLLogger) printf(ctx context.Context, at gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.level < at {
		return
	}
	l.base.Log(lvl, fmt.Sprintf(msg, data...), l.contextFields(ctx)...)
}

// Trace logs one executed statement. Failures log at error, statements over
// the slow threshold at warn, and everything else at debug when the level is Info.
func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	if err != nil && errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
	}

	elapsed := time.Since(begin)
	lvl, msg, ok := l.classify(elapsed, err)
	if !ok {
		return
	}

	sql, rows := fc()
	fields := append(l.contextFields(ctx),
		zap.String("statement", statementVerb(sql)),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
		zap.String("sql", truncateSQL(sql)),
	)
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.base.Log(lvl, msg, fields...)
}

// classify picks the level and message for a statement, or reports that
// nothing should be logged at the configured level.
func (l *SQLLogger) classify(elapsed time.Duration, err error) (zapcore.Level, string, bool) {
	switch {
	case err != nil:
		return zapcore.ErrorLevel, "sql statement failed", l.level >= gormlogger.Error
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		return zapcore.WarnLevel, fmt.Sprintf("slow sql statement (over %v)", l.slow), true
	default:
		return zapcore.DebugLevel, "sql statement", l.level >= gormlogger.Info
	}
}

func (l *SQLLogger) contextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := GetSyncRunID(ctx); id != "" {
		fields = append(fields, zap.String("sync_run_id", id))
	}
	return fields
}

// statementVerb returns the leading SQL keyword, upper-cased
func statementVerb(sql string) string {
	sql = strings.TrimSpace(sql)
	if i := strings.IndexAny(sql, " \t\n("); i > 0 {
		sql = sql[:i]
	}
	return strings.ToUpper(sql)
}

func truncateSQL(sql string) string {
	if len(sql) <= maxLoggedSQL {
		return sql
	}
	return sql[:maxLoggedSQL] + "...(truncated)"
}

// MapGormLogLevel maps the application log level to a gorm level
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "warn":
		return gormlogger.Warn
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
