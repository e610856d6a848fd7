// internal/config/config.go
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"futures-desk/internal/lock"
	"futures-desk/internal/telemetry"
	"futures-desk/pkg/db"
)

// Lock backends.
const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort  string           `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel    string           `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string           `env:"LOG_FORMAT" envDefault:"json"`
	LockBackend string           `env:"LOCK_BACKEND" envDefault:"local"`
	DB          db.Config        `envPrefix:"DB_"`
	Redis       lock.RedisConfig `envPrefix:"REDIS_"`
	Ledger      LedgerConfig     `envPrefix:"LEDGER_"`
	Telemetry   telemetry.Config `envPrefix:"OTEL_"`
}

// LedgerConfig tunes the ledger service.
type LedgerConfig struct {
	HistoryLimit int `env:"HISTORY_LIMIT" envDefault:"10"`
}

// LoadConfig loads configuration from environment variables, after an
// optional .env file in the working directory.
func LoadConfig() (*AppConfig, error) {
	_ = godotenv.Load() // a missing .env is fine

	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the application cannot start with.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.ServerPort) == "" {
		return fmt.Errorf("SERVER_PORT must not be empty")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported LOG_FORMAT %q", c.LogFormat)
	}
	switch c.LockBackend {
	case LockBackendLocal, LockBackendRedis:
	default:
		return fmt.Errorf("unsupported LOCK_BACKEND %q", c.LockBackend)
	}
	if c.Ledger.HistoryLimit <= 0 {
		return fmt.Errorf("LEDGER_HISTORY_LIMIT must be positive, got %d", c.Ledger.HistoryLimit)
	}
	if c.DB.MaxOpenConns <= 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", c.DB.MaxOpenConns)
	}
	return c.DB.Validate()
}
