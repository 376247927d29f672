package db

import (
	"fmt"
	"log/slog"
	"os"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
)

// Connect opens the SQLite account database. The path comes from
// SQLITE_PATH, defaulting to a file next to the binary.
func Connect() (*sqlx.DB, error) {
	path := os.Getenv("SQLITE_PATH")
	if path == "" {
		path = "./platform.db"
	}

	pool, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	slog.Info("connected to sqlite database", "path", path)
	return pool, nil
}

// Initialize verifies the schema exists.
func Initialize(pool *sqlx.DB) error {
	if _, err := pool.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		wallet_address TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL
	);`

	if _, err := pool.Exec(schema); err != nil {
		return fmt.Errorf("failed to create accounts table: %w", err)
	}

	slog.Info("db connection initialized and schema verified")
	return nil
}
