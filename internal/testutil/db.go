package testutil

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/0xPuncker/andon-notifier/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// NewJobDB opens a migrated SQLite job database in a per-test temp directory.
func NewJobDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	db, err := store.Open(ctx, store.DriverSQLite, filepath.Join(t.TempDir(), "andon.db"), 0)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := store.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// NewLogger returns a debug logger that only writes when tests run verbose.
func NewLogger(t *testing.T) *logrus.Logger {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	if !testing.Verbose() {
		logger.SetOutput(io.Discard)
	}
	return logger
}
