package sqlstore

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// Migrate brings the schema up to date for the store's dialect.
func (s *Store) Migrate() error {
	driver := s.db.DriverName()

	sub, err := fs.Sub(migrationFS, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("sqlstore: migration source for %s: %w", driver, err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("sqlstore: migration source: %w", err)
	}

	var dbDriver database.Driver
	switch driver {
	case "postgres":
		dbDriver, err = migratepg.WithInstance(s.db.DB, &migratepg.Config{})
	case "sqlite":
		dbDriver, err = migratesqlite.WithInstance(s.db.DB, &migratesqlite.Config{})
	default:
		return fmt.Errorf("sqlstore: no migrations for driver %q", driver)
	}
	if err != nil {
		return fmt.Errorf("sqlstore: migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, dbDriver)
	if err != nil {
		return fmt.Errorf("sqlstore: migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlstore: migrate up: %w", err)
	}
	return nil
}
