// Package logger provides structured logging setup for the settlement engine.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/Dexploarer/ghostspeak-go/internal/config"
)

// New creates a *slog.Logger from the given Logging config. Records go to
// stdout with a "service" attribute so log aggregators can tell engine
// replicas apart from other feeds. Format "text" is for local runs; anything
// else means JSON.
func New(cfg config.Logging) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With("service", cfg.Service)
}

// parseLevel converts a string log level to slog.Level. Unknown levels fall
// back to info rather than failing startup.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
