// Package logging provides structured logging for the bhlake pipeline.
//
// This package wraps the standard library's log/slog package to provide
// consistent logging across all pipeline stages. It supports both text and
// JSON output formats, configurable log levels, an optional log file, and
// component-based loggers.
//
// Usage:
//
//	// Initialize at startup
//	logging.Init(slog.LevelInfo, false, "") // Text format, stdout only
//	logging.Init(slog.LevelDebug, true, "logs/pipeline.log")
//
//	// Get a component logger
//	log := logging.Component("silver")
//	log.Info("transform finished", "records", 1204)
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Logger is the global logger instance.
var Logger *slog.Logger

// Init initializes the global logger with the specified level and format.
// If jsonFormat is true, logs are output as JSON; otherwise, human-readable
// text. If logFile is non-empty, output is duplicated to that file (parent
// directories are created as needed).
func Init(level slog.Level, jsonFormat bool, logFile string) error {
	var out io.Writer = os.Stdout

	if logFile != "" {
		if dir := filepath.Dir(logFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		out = io.MultiWriter(os.Stdout, f)
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
	return nil
}

// InitWithHandler initializes the global logger with a custom handler.
// This is useful for testing or custom output destinations.
func InitWithHandler(handler slog.Handler) {
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// ParseLevel parses a log level string (debug, info, warn, error).
// Unknown strings default to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "warning", "WARN", "WARNING":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new logger with additional attributes.
// These attributes are included in every log entry from the returned logger.
func With(args ...any) *slog.Logger {
	ensureInit()
	return Logger.With(args...)
}

// Component returns a logger for a specific pipeline component.
// The component name is added as an attribute to all log entries.
//
// Example:
//
//	log := logging.Component("bronze")
//	log.Info("started") // Output: time=... level=INFO component=bronze msg=started
func Component(name string) *slog.Logger {
	ensureInit()
	return Logger.With("component", name)
}

func ensureInit() {
	if Logger == nil {
		_ = Init(slog.LevelInfo, false, "")
	}
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	ensureInit()
	Logger.Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	ensureInit()
	Logger.Info(msg, args...)
}

// Warn logs at warning level.
func Warn(msg string, args ...any) {
	ensureInit()
	Logger.Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	ensureInit()
	Logger.Error(msg, args...)
}
