package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewHandler(t *testing.T) {
	t.Run("production writes JSON", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(NewHandler(&buf, slog.LevelInfo, true))
		logger.Debug("hidden")
		logger.Info("Transaction recorded", "user_id", "u1")

		var record map[string]any
		if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
			t.Fatalf("output is not a single JSON record: %v\n%s", err, buf.String())
		}
		if record["msg"] != "Transaction recorded" || record["user_id"] != "u1" {
			t.Errorf("unexpected record: %v", record)
		}
	})

	t.Run("development writes text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(NewHandler(&buf, slog.LevelDebug, false))
		logger.Debug("Ignoring event", "type", "follow")

		out := buf.String()
		if !strings.Contains(out, "Ignoring event") || strings.HasPrefix(out, "{") {
			t.Errorf("unexpected output: %q", out)
		}
	})
}
