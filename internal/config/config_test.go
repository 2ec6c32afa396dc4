package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Environment != Development || cfg.Server.Port != 8080 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Ledger.BreachDelay != 100*time.Millisecond {
		t.Errorf("BreachDelay = %v", cfg.Ledger.BreachDelay)
	}
	if cfg.LLM.Enabled() {
		t.Error("LLM should be disabled by default")
	}
	if cfg.Location().String() != "Asia/Taipei" {
		t.Errorf("Location = %v", cfg.Location())
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
environment: staging
server:
  port: 9000
line:
  channel_secret: from-file
llm:
  base_url: http://localhost:11434/v1
  model: llama3
ledger:
  time_zone: UTC
  breach_delay: 250ms
  workers: 3
`)
	t.Setenv("LINE_CHANNEL_SECRET", "from-env")
	t.Setenv("WORKERS", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"environment", cfg.Environment, Staging},
		{"port", cfg.Server.Port, 9000},
		{"env overrides file", cfg.Line.ChannelSecret, "from-env"},
		{"default kept", cfg.Line.APIBaseURL, "https://api.line.me"},
		{"llm enabled", cfg.LLM.Enabled(), true},
		{"min confidence default", cfg.LLM.MinConfidence, 0.6},
		{"breach delay", cfg.Ledger.BreachDelay, 250 * time.Millisecond},
		{"workers", cfg.Ledger.Workers, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "missing file", file: "/nonexistent/config.yaml"},
		{name: "bad yaml", file: writeConfig(t, "server: [")},
		{name: "unknown environment", env: map[string]string{"ENVIRONMENT": "qa"}},
		{name: "bad port", env: map[string]string{"PORT": "http"}},
		{name: "port out of range", env: map[string]string{"PORT": "70000"}},
		{name: "bad duration", env: map[string]string{"BREACH_DELAY": "soon"}},
		{name: "bad time zone", env: map[string]string{"TZ_NAME": "Mars/Olympus"}},
		{name: "production without secret", env: map[string]string{"ENVIRONMENT": "production"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(tt.file); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIsProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LINE_CHANNEL_SECRET", "secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("expected production")
	}
}
