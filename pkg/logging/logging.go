// Package logging configures structured logging for the server.
//
// Development and staging get colored, human-readable output from tint;
// production gets one JSON object per line.
//
// Usage:
//
//	logging.Setup("debug", false)   // tint at DEBUG
//	logging.Setup("", true)         // JSON at INFO
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs the default logger at the given level ("debug", "info",
// "warn", "error"; anything else is info).
func Setup(level string, production bool) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, ParseLevel(level), production)))
}

// NewHandler returns the handler Setup installs, writing to w.
func NewHandler(w io.Writer, level slog.Level, production bool) slog.Handler {
	if production {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	})
}

// ParseLevel maps a level name onto a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
