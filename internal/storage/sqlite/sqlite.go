// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/smartsplit/internal/storage"
	"github.com/mmynk/smartsplit/internal/storage/migrations"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

const pragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Write transactions take the lock up front so a read-then-write transaction
// cannot fail to upgrade. Read transactions stay deferred and, under WAL,
// never wait on writers or on each other.
const (
	writeDSNOptions = pragmas + "&_txlock=immediate"
	readDSNOptions  = pragmas + "&_txlock=deferred"
)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	readDB *sql.DB
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+writeDSNOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrations.Up(ctx, db, migrations.SQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	readDB, err := sql.Open("sqlite", dbPath+readDSNOptions)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open read handle: %w", err)
	}

	return &SQLiteStore{db: db, readDB: readDB}, nil
}

// DB exposes the underlying handle for migrations tooling.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close folds the WAL back into the main database file and closes both
// connection pools. Every error is reported.
func (s *SQLiteStore) Close() error {
	err := s.readDB.Close()
	_, cerr := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return multierr.Combine(err, cerr, s.db.Close())
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
