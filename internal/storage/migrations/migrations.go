// Package migrations embeds the SQL schema for each supported database and
// applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed sqlite/*.sql postgres/*.sql
var embedded embed.FS

// Dialects supported by this package.
const (
	SQLite   = goose.DialectSQLite3
	Postgres = goose.DialectPostgres
)

func newProvider(db *sql.DB, dialect goose.Dialect) (*goose.Provider, error) {
	var dir string
	switch dialect {
	case SQLite:
		dir = "sqlite"
	case Postgres:
		dir = "postgres"
	default:
		return nil, fmt.Errorf("unsupported migration dialect %q", dialect)
	}

	fsys, err := fs.Sub(embedded, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s migrations: %w", dir, err)
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}

// Up applies every pending migration.
func Up(ctx context.Context, db *sql.DB, dialect goose.Dialect) error {
	provider, err := newProvider(db, dialect)
	if err != nil {
		return err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	if len(results) > 0 {
		slog.Info("Migrations applied", "dialect", string(dialect), "count", len(results))
	}
	return nil
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, db *sql.DB, dialect goose.Dialect) error {
	provider, err := newProvider(db, dialect)
	if err != nil {
		return err
	}
	result, err := provider.Down(ctx)
	if err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	slog.Info("Migration rolled back", "dialect", string(dialect), "version", result.Source.Version)
	return nil
}

// Version is one migration's state.
type Version struct {
	Version int64
	Path    string
	Applied bool
}

// Status lists every known migration and whether it has been applied.
func Status(ctx context.Context, db *sql.DB, dialect goose.Dialect) ([]Version, error) {
	provider, err := newProvider(db, dialect)
	if err != nil {
		return nil, err
	}
	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}

	versions := make([]Version, 0, len(statuses))
	for _, s := range statuses {
		versions = append(versions, Version{
			Version: s.Source.Version,
			Path:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return versions, nil
}
