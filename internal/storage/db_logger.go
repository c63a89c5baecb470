package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"

	"tg-banshare/internal/logger"
)

// GormLogger routes gorm's SQL traces into the application log.
type GormLogger struct {
	log                       *zap.SugaredLogger
	LogLevel                  gormlogger.LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

// NewGormLogger maps the application log level onto gorm's levels. SQL
// statements are only traced when the application runs at DEBUG.
func NewGormLogger(level string) gormlogger.Interface {
	var logLevel gormlogger.LogLevel
	switch strings.ToUpper(level) {
	case "DEBUG":
		logLevel = gormlogger.Info
	case "ERROR", "FATAL":
		logLevel = gormlogger.Error
	default:
		logLevel = gormlogger.Warn
	}

	return &GormLogger{
		log:                       logger.Named("gorm"),
		LogLevel:                  logLevel,
		SlowThreshold:             200 * time.Millisecond,
		IgnoreRecordNotFoundError: true,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.LogLevel = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Info {
		l.log.Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Warn {
		l.log.Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Error {
		l.log.Errorf(msg, data...)
	}
}

// Trace logs failed and slow statements, and every statement at Info level.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	ms := float64(elapsed.Nanoseconds()) / 1e6

	switch {
	case err != nil && l.LogLevel >= gormlogger.Error &&
		(!errors.Is(err, gorm.ErrRecordNotFound) || !l.IgnoreRecordNotFoundError):
		sql, rows := fc()
		l.log.Errorw("sql failed", "source", utils.FileWithLineNum(), "elapsed_ms", ms, "sql", sql, "rows", rows, "error", err)
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold && l.LogLevel >= gormlogger.Warn:
		sql, rows := fc()
		l.log.Warnw("slow sql", "source", utils.FileWithLineNum(), "elapsed_ms", ms, "threshold", l.SlowThreshold, "sql", sql, "rows", rows)
	case l.LogLevel >= gormlogger.Info:
		sql, rows := fc()
		l.log.Debugw("sql", "source", utils.FileWithLineNum(), "elapsed_ms", ms, "sql", sql, "rows", rows)
	}
}
