package logging

import (
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// New creates a console slog.Logger with the provided level string.
func New(level string) *slog.Logger {
	return slog.New(consoleHandler(level))
}

// NewWithCollector creates a logger that writes to the console and mirrors
// every record into the returned Collector, so a supervising caller can
// inspect what a pipeline run reported.
func NewWithCollector(level string) (*slog.Logger, *Collector) {
	collector := NewCollector()
	handler := slogmulti.Fanout(consoleHandler(level), collector)
	return slog.New(handler), collector
}

func consoleHandler(level string) slog.Handler {
	return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelFromString(level),
	})
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
