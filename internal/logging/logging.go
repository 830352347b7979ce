// Package logging provides the application-wide structured logging setup
// plus per-service file loggers with rotation.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

var defaultLogger *slog.Logger

// Init initializes the process-wide structured logger. JSON output goes to
// stdout so an external supervisor can ship it; call once from main.
func Init(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// ForService returns a child of the default logger with the 'service'
// attribute set. Returns nil if Init has not been called.
func ForService(serviceName string) *slog.Logger {
	if defaultLogger == nil {
		return nil
	}
	return defaultLogger.With("service", serviceName)
}

// NewFileLogger creates a slog.Logger writing JSON to filePath through a
// rotating lumberjack writer. The returned close function releases the
// underlying writer. Level is dynamic via the supplied LevelVar so services
// can raise verbosity at runtime.
func NewFileLogger(filePath, serviceName string, level *slog.LevelVar) (*slog.Logger, func() error, error) {
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	logWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    20, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}

	fileHandler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: level})
	logger := slog.New(fileHandler).With("service", serviceName)

	return logger, logWriter.Close, nil
}
