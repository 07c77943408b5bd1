// Package logging provides the process-wide structured logger.
//
// Information Hiding:
// - slog handler construction hidden
// - Level parsing hidden
// - Logger swapping is guarded so callers never see a half-configured logger
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	mu     sync.RWMutex
)

func init() {
	logger = newLogger(ParseLevel(os.Getenv("PATCHSCOUT_LOG_LEVEL")), os.Stderr)
}

// Level represents a logging level.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel parses a level string. Unknown values map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func newLogger(level Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level.slogLevel(),
	}))
}

// Configure replaces the global logger. A nil writer logs to stderr.
func Configure(level Level, w io.Writer) {
	l := newLogger(level, w)

	mu.Lock()
	logger = l
	mu.Unlock()
}

// Disable discards all log output. Used by tests and quiet CLI runs.
func Disable() {
	Configure(LevelError, io.Discard)
}

// Logger returns the underlying slog.Logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// With returns a child logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) { Logger().Debug(msg, args...) }

// Info logs an info message.
func Info(msg string, args ...any) { Logger().Info(msg, args...) }

// Warn logs a warning message.
func Warn(msg string, args ...any) { Logger().Warn(msg, args...) }

// Error logs an error message.
func Error(msg string, args ...any) { Logger().Error(msg, args...) }
