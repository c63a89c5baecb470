package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"tg-banshare/internal/config"
)

var (
	base  = zap.NewNop()
	sugar = base.Sugar()
)

// createLogFilePath generates a log file path with the current date
func createLogFilePath(logDir, prefix string) string {
	currentDate := time.Now().Format("2006-01-02")
	return filepath.Join(logDir, fmt.Sprintf("%s-%s.log", prefix, currentDate))
}

// createRotatingLogger creates a lumberjack rotating logger
func createRotatingLogger(logFilePath string, cfg *config.Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    cfg.Logger.Rotation.MaxSize,
		MaxBackups: cfg.Logger.Rotation.MaxBackups,
		MaxAge:     cfg.Logger.Rotation.MaxAge,
		Compress:   cfg.Logger.Rotation.Compress,
	}
}

// ParseLevel maps the configured level names onto zap levels.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel, nil
	case "", "INFO":
		return zapcore.InfoLevel, nil
	case "WARN", "WARNING":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	case "FATAL":
		return zapcore.FatalLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
}

func newEncoder(cfg *config.Config) (zapcore.Encoder, error) {
	loc := time.Local
	if tz := cfg.Logger.Timezone; tz != "" && tz != "Local" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid logger.timezone: %w", err)
		}
		loc = l
	}
	layout := cfg.Logger.TimeFormat
	if layout == "" {
		layout = time.RFC3339
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.In(loc).Format(layout))
	}
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	if strings.EqualFold(cfg.Logger.Format, "json") {
		return zapcore.NewJSONEncoder(encCfg), nil
	}
	return zapcore.NewConsoleEncoder(encCfg), nil
}

// Setup configures logging to output to both stdout and a rotating log file
func Setup(cfg *config.Config) error {
	logDir := cfg.Logger.Directory

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	level, err := ParseLevel(cfg.Logger.Level)
	if err != nil {
		return err
	}
	encoder, err := newEncoder(cfg)
	if err != nil {
		return err
	}

	logFilePath := createLogFilePath(logDir, "tg-banshare")
	writer := io.MultiWriter(os.Stdout, createRotatingLogger(logFilePath, cfg))

	core := zapcore.NewCore(encoder, zapcore.AddSync(writer), level)
	replace(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)))

	// telego and net/http still write through the standard logger
	zap.RedirectStdLog(base.WithOptions(zap.AddCallerSkip(-1)))

	Infof("Logging initialized: writing to %s", logFilePath)
	return nil
}

func replace(l *zap.Logger) {
	base = l
	sugar = l.Sugar()
}

// Named returns a child logger for a subsystem, e.g. "gorm" or "fanout".
func Named(name string) *zap.SugaredLogger {
	return base.WithOptions(zap.AddCallerSkip(-1)).Named(name).Sugar()
}

// Sync flushes buffered entries, call before exit.
func Sync() {
	_ = base.Sync()
}

func Debugf(format string, args ...interface{}) {
	sugar.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	sugar.Infof(format, args...)
}

func Warningf(format string, args ...interface{}) {
	sugar.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	sugar.Errorf(format, args...)
}

func Error(args ...interface{}) {
	sugar.Error(args...)
}

func Fatalf(format string, args ...interface{}) {
	sugar.Fatalf(format, args...)
}
