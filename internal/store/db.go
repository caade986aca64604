package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Open connects to the job database. SQLite connections begin transactions with
// BEGIN IMMEDIATE so concurrent claimants queue on the write lock.
func Open(ctx context.Context, driver, dsn string, maxOpenConns int) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL"
}

var schemas = map[string]string{
	DriverPostgres: `
	CREATE TABLE IF NOT EXISTS notification_jobs (
		id TEXT PRIMARY KEY,
		job_name TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		last_run TIMESTAMPTZ NULL,
		next_run TIMESTAMPTZ NOT NULL,
		locked_by TEXT NULL,
		locked_until TIMESTAMPTZ NULL,
		last_error TEXT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`,
	DriverSQLite: `
	CREATE TABLE IF NOT EXISTS notification_jobs (
		id TEXT PRIMARY KEY,
		job_name TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		last_run DATETIME NULL,
		next_run DATETIME NOT NULL,
		locked_by TEXT NULL,
		locked_until DATETIME NULL,
		last_error TEXT NULL,
		updated_at DATETIME NOT NULL
	);
	`,
}

// Migrate creates the notification_jobs table if it does not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	schema, ok := schemas[db.DriverName()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDriver, db.DriverName())
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate notification_jobs: %w", err)
	}
	return nil
}
