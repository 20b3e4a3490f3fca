package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending migrations to the database at the given URL,
// returning the schema version before and after
func Migrate(dsn string) (uint, uint, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return 0, 0, fmt.Errorf("database ping failed: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create migrate driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	before, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, 0, fmt.Errorf("failed to check migration version: %w", err)
	}
	if dirty {
		return before, before, fmt.Errorf("database is in a dirty state at version %d", before)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return before, before, fmt.Errorf("failed to apply migrations: %w", err)
	}
	after, _, err := m.Version()
	if err != nil {
		return before, before, fmt.Errorf("failed to check migration version: %w", err)
	}
	return before, after, nil
}
