package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	// BackendURL is the automation backend's API root.
	BackendURL string `env:"BACKEND_URL,default=http://127.0.0.1:8000/api"`

	// PollInterval is the reconciliation cadence for logs and bot status.
	PollInterval time.Duration `env:"POLL_INTERVAL,default=2s"`

	// PollTimeout bounds each reconciliation fetch.
	PollTimeout time.Duration `env:"POLL_TIMEOUT,default=10s"`

	// CommandTimeout bounds each operator command's backend calls.
	CommandTimeout time.Duration `env:"COMMAND_TIMEOUT,default=5m"`

	// LogRefreshDelay is the pause before the extra log refresh that follows
	// a bot start or stop.
	LogRefreshDelay time.Duration `env:"LOG_REFRESH_DELAY,default=500ms"`

	// BotIntervalMinutes is the bot interval offered before the operator
	// changes it.
	BotIntervalMinutes int `env:"BOT_INTERVAL_MINUTES,default=60"`

	// Port is the web dashboard's HTTP port.
	Port int `env:"LISTEN_PORT,default=3000"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL,default=info"`

	// JournalDSN selects the command journal store. Empty disables it;
	// postgres:// URLs use Postgres, sqlite:// paths use SQLite.
	JournalDSN string `env:"JOURNAL_DSN"`

	// JournalMaxAge and JournalMaxRows bound journal retention.
	JournalMaxAge  time.Duration `env:"JOURNAL_MAX_AGE,default=720h"`
	JournalMaxRows int           `env:"JOURNAL_MAX_ROWS,default=5000"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, fmt.Errorf("parse env vars: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the zero-config defaults cannot guarantee.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid BACKEND_URL %q", c.BackendURL)
	}

	durations := map[string]time.Duration{
		"POLL_INTERVAL":     c.PollInterval,
		"POLL_TIMEOUT":      c.PollTimeout,
		"COMMAND_TIMEOUT":   c.CommandTimeout,
		"LOG_REFRESH_DELAY": c.LogRefreshDelay,
		"JOURNAL_MAX_AGE":   c.JournalMaxAge,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.BotIntervalMinutes < 1 {
		return fmt.Errorf("BOT_INTERVAL_MINUTES must be at least 1, got %d", c.BotIntervalMinutes)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid LISTEN_PORT %d", c.Port)
	}
	if c.JournalMaxRows < 1 {
		return fmt.Errorf("JOURNAL_MAX_ROWS must be at least 1, got %d", c.JournalMaxRows)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// NewLogger builds the JSON logger used by every process.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
}
