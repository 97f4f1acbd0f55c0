// Package config reads settings from the environment. A .env file in the
// working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ad/go-strategy-coach/internal/checklist"
	"github.com/ad/go-strategy-coach/internal/db"
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	BotToken string
	AdminID  int64

	Dialect     db.Dialect
	DBPath      string
	DatabaseURL string

	APIAddr   string
	JWTSecret string

	LogLevel         string
	ReconcileTimeout time.Duration
}

// DSN returns the connection string for the configured dialect.
func (c *Config) DSN() string {
	if c.Dialect == db.DialectPostgres {
		return c.DatabaseURL
	}
	return c.DBPath
}

// Load reads the environment. The bot token is not required here so that
// tools without a bot can share the same configuration; use RequireBot.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		BotToken:         strings.TrimSpace(getenv("BOT_TOKEN")),
		DBPath:           getenv("DB_PATH"),
		DatabaseURL:      getenv("DATABASE_URL"),
		APIAddr:          getenv("API_ADDR"),
		JWTSecret:        getenv("JWT_SECRET"),
		LogLevel:         getenv("LOG_LEVEL"),
		ReconcileTimeout: checklist.DefaultReconcileTimeout,
	}

	if cfg.DBPath == "" {
		cfg.DBPath = "strategy.db"
	}

	if v := getenv("ADMIN_ID"); v != "" {
		adminID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_ID: %w", err)
		}
		cfg.AdminID = adminID
	}

	dialect, err := db.ParseDialect(getenv("DB_DRIVER"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_DRIVER: %w", err)
	}
	cfg.Dialect = dialect
	if dialect == db.DialectPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required for postgres")
	}

	if cfg.APIAddr != "" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required when API_ADDR is set")
	}

	if v := getenv("RECONCILE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid RECONCILE_TIMEOUT %q", v)
		}
		cfg.ReconcileTimeout = d
	}

	return cfg, nil
}

func (c *Config) RequireBot() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN environment variable is required")
	}
	return nil
}
