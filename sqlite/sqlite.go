// Package sqlite provides durable implementations of the event.Store and
// snapshot.Store interfaces backed by SQLite, through the pure-Go
// modernc.org/sqlite driver.
//
// SQLite is a good fit for single-process deployments and integration tests,
// where a PostgreSQL instance would be overkill.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// Loads the database/sql driver named "sqlite".
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var fs embed.FS

// Open opens (or creates) the SQLite database at the provided path and runs
// the latest migrations on it.
//
// The returned handle has WAL journaling, foreign keys and a busy timeout
// enabled. Use ":memory:" as path for an ephemeral database.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite.Open: database path must not be empty")
	}

	dsn := path + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: failed to open database, %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.Open: failed to ping database, %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func runMigrations(db *sql.DB) error {
	wrapErr := func(err error, msg string) error {
		return fmt.Errorf("sqlite.runMigrations: %s, %w", msg, err)
	}

	d, err := iofs.New(fs, "migrations")
	if err != nil {
		return wrapErr(err, "failed to create new iofs driver for reading migrations")
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{
		MigrationsTable: "eventfold_schema_migrations",
	})
	if err != nil {
		return wrapErr(err, "failed to create migrate database driver")
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return wrapErr(err, "failed to create new migrate source for running db migrations")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return wrapErr(err, "failed to execute migrations")
	}

	return nil
}
