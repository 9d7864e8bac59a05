// Package logging holds the process-wide slog logger and the HTTP request
// logging middleware.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type LoggingService struct {
	Logger *slog.Logger
}

var DefaultLoggingService *LoggingService

// InitLogger initializes the global logger instance writing to stdout
func InitLogger(level, format string) {
	InitLoggerWithWriter(os.Stdout, level, format)
}

// InitLoggerWithWriter initializes the global logger on w. Tests pass a buffer.
func InitLoggerWithWriter(w io.Writer, level, format string) {
	DefaultLoggingService = &LoggingService{
		Logger: NewLogger(w, level, format),
	}
	slog.SetDefault(DefaultLoggingService.Logger)
}

// NewLogger builds a text or JSON slog logger at the given level
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// parseLogLevel maps a LOG_LEVEL value to a slog level, defaulting to info
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger returns the global logger, or slog's default when InitLogger was not called
func Logger() *slog.Logger {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return slog.Default()
	}
	return DefaultLoggingService.Logger
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}
