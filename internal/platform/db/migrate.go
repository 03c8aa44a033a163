package db

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Migrate applies every pending up migration found in source.
func Migrate(dsn string, source fs.FS, logger *slog.Logger) error {
	m, closeFn, err := newMigrator(dsn, source)
	if err != nil {
		return err
	}
	defer closeFn()

	logger.Info("running migrations")
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no migrations to run")
			return nil
		}
		return fmt.Errorf("platform/db: migrate up: %w", err)
	}
	version, dirty, _ := m.Version()
	logger.Info("migrations applied", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	return nil
}

// MigrateDown rolls back the given number of migrations.
func MigrateDown(dsn string, source fs.FS, steps int) error {
	m, closeFn, err := newMigrator(dsn, source)
	if err != nil {
		return err
	}
	defer closeFn()
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("platform/db: migrate down: %w", err)
	}
	return nil
}

func newMigrator(dsn string, source fs.FS) (*migrate.Migrate, func(), error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("platform/db: open: %w", err)
	}
	driver, err := pgmigrate.WithInstance(conn, &pgmigrate.Config{})
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("platform/db: migrate driver: %w", err)
	}
	src, err := iofs.New(source, ".")
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("platform/db: migrate source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("platform/db: migrate init: %w", err)
	}
	return m, func() { _, _ = m.Close() }, nil
}
