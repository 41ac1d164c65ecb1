// Package log configures structured logging for approvion services.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the process-wide text handler on stderr. Unrecognized
// levels fall back to info.
func Setup(logLevel string) {
	var level slog.Level

	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule tags a logger with the subsystem it belongs to.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
