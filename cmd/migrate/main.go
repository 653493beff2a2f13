// Command migrate applies, rolls back or lists schema migrations without
// starting the server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/mmynk/smartsplit/internal/config"
	"github.com/mmynk/smartsplit/internal/storage/migrations"
	"github.com/mmynk/smartsplit/pkg/logging"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug(".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.App.SlogLevel())

	if err := run(context.Background(), cfg.DB, *cmd); err != nil {
		slog.Error("Migration failed", "cmd", *cmd, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.DBConfig, cmd string) error {
	db, dialect, err := open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	switch cmd {
	case "up":
		return migrations.Up(ctx, db, dialect)
	case "down":
		return migrations.Down(ctx, db, dialect)
	case "status":
		versions, err := migrations.Status(ctx, db, dialect)
		if err != nil {
			return err
		}
		for _, v := range versions {
			state := "pending"
			if v.Applied {
				state = "applied"
			}
			fmt.Printf("%05d  %-8s %s\n", v.Version, state, v.Path)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func open(cfg config.DBConfig) (*sql.DB, goose.Dialect, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := sql.Open("sqlite", cfg.Path)
		return db, migrations.SQLite, err
	case config.DriverPostgres:
		db, err := sql.Open("pgx", cfg.DSN)
		return db, migrations.Postgres, err
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
