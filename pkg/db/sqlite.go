// pkg/db/sqlite.go
package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver registered as "sqlite"
)

const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// SQLiteDSN appends the pragmas the ledger relies on to a path or ":memory:".
func SQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + sqlitePragmas
}

// NewSQLiteDB opens an embedded database. A single connection serializes
// every transaction and keeps ":memory:" databases alive for the pool's lifetime.
func NewSQLiteDB(cfg Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(DriverSQLite, SQLiteDSN(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite: %w", err)
	}
	return db, nil
}
