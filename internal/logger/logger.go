// Package logger builds the structured logger shared by the services.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/daxchui/orderflow/internal/config"
)

// NewLogger builds a JSON slog.Logger from configuration. Debug level also
// turns on source locations. Every record carries the service name so the
// four services can share one log sink.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.Logging.Level)

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	})

	log := slog.New(handler)
	if cfg.Application.Name != "" {
		log = log.With("service", cfg.Application.Name)
	}

	return log
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
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
