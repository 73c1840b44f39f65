package capture

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateUp brings the capture schema to the newest embedded version.
//
// The migrator shares s.db, so it is left unclosed; closing it would close
// the store's connection.
func (s *Store) MigrateUp() error {
	m, err := s.migrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("capture schema upgrade: %w", err)
	}
	return nil
}

// MigrateDown reverts one schema version.
func (s *Store) MigrateDown() error {
	m, err := s.migrator()
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("capture schema downgrade: %w", err)
	}
	return nil
}

// MigrateVersion reports the applied schema version; a fresh database is
// version 0.
func (s *Store) MigrateVersion() (uint, bool, error) {
	m, err := s.migrator()
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func (s *Store) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("capture migrations: %w", err)
	}
	drv, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("capture migration driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", src, "sqlite", drv)
}
