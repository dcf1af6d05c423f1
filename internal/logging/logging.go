// Package logging configures the application-wide slog loggers: a structured
// JSON logger for machine consumption and a human-readable text logger for
// the console, plus rotating file loggers for individual services.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tphakala/voicebot-go/internal/conf"
	"gopkg.in/natefinch/lumberjack.v2"
)

var structuredLogger *slog.Logger
var humanReadableLogger *slog.Logger

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

// Init initializes the logging system with structured and human-readable loggers.
// It configures JSON output for structured logs and Text output for human-readable logs.
func Init() {
	SetOutput(os.Stdout, os.Stderr)
}

// SetOutput builds both loggers on top of the given writers. Init routes them
// to the console; SetupFileLogging tees the structured writer into a log file.
func SetOutput(structuredOutput, humanReadableOutput io.Writer) {
	structuredLogger = slog.New(slog.NewJSONHandler(structuredOutput, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: replaceLevelNames,
	}))
	humanReadableLogger = slog.New(slog.NewTextHandler(humanReadableOutput, &slog.HandlerOptions{
		Level:       slog.LevelInfo,
		ReplaceAttr: replaceLevelNames,
	}))
	slog.SetDefault(structuredLogger)
}

// SetupFileLogging tees the structured logger into a rotating log file when
// file logging is enabled in the settings. Service loggers created afterwards
// with ForService inherit the file output. The returned close function closes
// the log file; it is a no-op when file logging is disabled.
func SetupFileLogging(settings *conf.Settings) (func() error, error) {
	logConf := settings.Main.Log
	if !logConf.Enabled || logConf.Path == "" {
		return func() error { return nil }, nil
	}

	logWriter, err := newRotatingWriter(logConf.Path, logConf)
	if err != nil {
		return nil, err
	}

	SetOutput(io.MultiWriter(os.Stdout, logWriter), os.Stderr)
	return logWriter.Close, nil
}

// Structured returns the globally configured structured (JSON) logger.
// Returns nil if Init() has not been called.
func Structured() *slog.Logger {
	return structuredLogger
}

// HumanReadable returns the globally configured human-readable (Text) logger.
// Returns nil if Init() has not been called.
func HumanReadable() *slog.Logger {
	return humanReadableLogger
}

// ForService creates a new logger instance with the 'service' attribute added.
// It uses the global structured logger as the base.
// Returns nil if Init() has not been called.
func ForService(serviceName string) *slog.Logger {
	if structuredLogger == nil {
		return nil
	}
	return structuredLogger.With("service", serviceName)
}

// Fatal logs a fatal message using the custom Fatal level and then exits.
func Fatal(msg string, args ...any) {
	slog.Log(context.TODO(), LevelFatal, msg, args...)
	os.Exit(1)
}

// NewFileLogger creates a new slog.Logger instance configured to write JSON logs
// to the specified file path using lumberjack for rotation based on global config.
// It includes a 'service' attribute in all logs.
// It returns the logger, a function to close the underlying log writer, and an error if setup fails.
func NewFileLogger(filePath, serviceName string, level slog.Level) (*slog.Logger, func() error, error) {
	logConf := conf.LogConfig{}
	if settings := conf.GetSettings(); settings != nil {
		logConf = settings.Main.Log
	}

	logWriter, err := newRotatingWriter(filePath, logConf)
	if err != nil {
		return nil, nil, err
	}

	handler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
	logger := slog.New(handler).With("service", serviceName)

	return logger, logWriter.Close, nil
}

// newRotatingWriter builds the lumberjack writer shared by the global log
// file and the per-service file loggers.
func newRotatingWriter(filePath string, logConf conf.LogConfig) (*lumberjack.Logger, error) {
	// lumberjack doesn't create directories
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	maxSizeMB := 10
	maxBackups := 3
	maxAge := 28 // days
	if logConf.MaxSize > 0 {
		maxSizeMB = logConf.MaxSize
	}
	if logConf.MaxBackups > 0 {
		maxBackups = logConf.MaxBackups
	}
	if logConf.MaxAge > 0 {
		maxAge = logConf.MaxAge
	}

	return &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
	}, nil
}
