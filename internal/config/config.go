// Package config loads the server configuration.
//
// Values come from an optional YAML file (path from --config or
// LEDGER_CONFIG) and are then overridden by environment variables, so a
// deployment can keep secrets out of the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the server configuration.
type Config struct {
	// Environment identifies the deployment type. Production enforces
	// webhook signatures and hides the developer console.
	Environment Environment `yaml:"environment"`

	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Line    LineConfig    `yaml:"line"`
	Redis   RedisConfig   `yaml:"redis"`
	LLM     LLMConfig     `yaml:"llm"`
	Ledger  LedgerConfig  `yaml:"ledger"`

	// LinkTokenSecret signs account link tokens. When empty a key is
	// derived from the channel secret.
	LinkTokenSecret string `yaml:"link_token_secret"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// StorageConfig configures the SQLite database.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// LineConfig holds the Messaging API channel credentials.
type LineConfig struct {
	ChannelSecret      string `yaml:"channel_secret"`
	ChannelAccessToken string `yaml:"channel_access_token"`
	APIBaseURL         string `yaml:"api_base_url"`
}

// RedisConfig enables the shared reply-token guard. Empty URL keeps the
// guard in memory.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// LLMConfig configures the fallback transaction parser. Empty BaseURL or
// Model disables it.
type LLMConfig struct {
	BaseURL       string  `yaml:"base_url"`
	APIKey        string  `yaml:"api_key"`
	Model         string  `yaml:"model"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// Enabled reports whether an LLM endpoint is configured.
func (c LLMConfig) Enabled() bool {
	return c.BaseURL != "" && c.Model != ""
}

// LedgerConfig tunes the ledger engine.
type LedgerConfig struct {
	// TimeZone is the IANA zone used for day, week and month boundaries.
	TimeZone string `yaml:"time_zone"`

	// CategoryRulesPath points at a YAML file replacing the built-in
	// category keywords.
	CategoryRulesPath string `yaml:"category_rules_path"`

	BreachDelay time.Duration `yaml:"breach_delay"`
	Workers     int           `yaml:"workers"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Environment: Development,
		Server:      ServerConfig{Port: 8080},
		Storage:     StorageConfig{DBPath: "./data/ledger.db"},
		Line:        LineConfig{APIBaseURL: "https://api.line.me"},
		LLM:         LLMConfig{MinConfidence: 0.6},
		Ledger: LedgerConfig{
			TimeZone:    "Asia/Taipei",
			BreachDelay: 100 * time.Millisecond,
			Workers:     8,
		},
		LogLevel: "info",
	}
}

// Load reads the file at path, if any, over the defaults and applies the
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func (c *Config) applyEnv() error {
	c.Environment = Environment(getEnv("ENVIRONMENT", string(c.Environment)))
	c.Storage.DBPath = getEnv("DB_PATH", c.Storage.DBPath)
	c.Line.ChannelSecret = getEnv("LINE_CHANNEL_SECRET", c.Line.ChannelSecret)
	c.Line.ChannelAccessToken = getEnv("LINE_CHANNEL_ACCESS_TOKEN", c.Line.ChannelAccessToken)
	c.Line.APIBaseURL = getEnv("LINE_API_BASE_URL", c.Line.APIBaseURL)
	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.Ledger.TimeZone = getEnv("TZ_NAME", c.Ledger.TimeZone)
	c.Ledger.CategoryRulesPath = getEnv("CATEGORY_RULES_PATH", c.Ledger.CategoryRulesPath)
	c.LinkTokenSecret = getEnv("LINK_TOKEN_SECRET", c.LinkTokenSecret)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("LLM_MIN_CONFIDENCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid LLM_MIN_CONFIDENCE %q: %w", v, err)
		}
		c.LLM.MinConfidence = f
	}
	if v := os.Getenv("BREACH_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid BREACH_DELAY %q: %w", v, err)
		}
		c.Ledger.BreachDelay = d
	}
	if v := os.Getenv("WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid WORKERS %q: %w", v, err)
		}
		c.Ledger.Workers = n
	}
	return nil
}

// Validate checks values that would otherwise fail at first use.
func (c *Config) Validate() error {
	switch c.Environment {
	case Development, Staging, Production:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if _, err := time.LoadLocation(c.Ledger.TimeZone); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", c.Ledger.TimeZone, err)
	}
	if c.IsProduction() && c.Line.ChannelSecret == "" {
		return errors.New("LINE_CHANNEL_SECRET is required in production")
	}
	return nil
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// Location returns the configured time zone. Validate has checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Ledger.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}
