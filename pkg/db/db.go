// pkg/db/db.go
package db

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Supported driver names.
const (
	DriverPostgres = "postgres" // github.com/lib/pq
	DriverPgx      = "pgx"      // github.com/jackc/pgx/v5/stdlib
	DriverSQLite   = "sqlite"   // modernc.org/sqlite
)

func init() {
	// sqlx only knows "sqlite3" as a '?' driver.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Config holds database connection configuration.
type Config struct {
	Driver       string `env:"DRIVER" envDefault:"postgres"`
	Host         string `env:"HOST" envDefault:"localhost"`
	Port         int    `env:"PORT" envDefault:"5432"`
	User         string `env:"USER" envDefault:"user"`
	Password     string `env:"PASSWORD" envDefault:"password"`
	DBName       string `env:"NAME" envDefault:"futuresdb"`
	SSLMode      string `env:"SSLMODE" envDefault:"disable"`
	DSN          string `env:"DSN"` // overrides the composed DSN; the file path for sqlite
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"25"`
	AutoMigrate  bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

// Validate checks the driver selection.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverPgx:
		return nil
	case DriverSQLite:
		if strings.TrimSpace(c.DSN) == "" {
			return fmt.Errorf("DB_DSN is required for the %s driver", DriverSQLite)
		}
		return nil
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Driver)
	}
}

// Open connects using the configured driver.
func Open(cfg Config) (*sqlx.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Driver == DriverSQLite {
		return NewSQLiteDB(cfg)
	}
	return NewPostgresDB(cfg)
}
