package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Logger is a wrapper around slog.Logger.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing tinted output to stdout at debug level.
func New() *Logger {
	return NewWithLevel(slog.LevelDebug)
}

// NewWithLevel creates a Logger that drops records below the given level.
func NewWithLevel(level slog.Level) *Logger {
	return &Logger{
		slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})),
	}
}

// ParseLevel maps a config string to a slog level. Unknown values fall back
// to debug so a typo never silences the log.
func ParseLevel(s string) slog.Level {
	switch s {
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
