package migrations

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// New returns a migrator over db. An empty dir uses the embedded
// migrations; otherwise SQL files are read from dir on disk.
func New(db *sql.DB, dir string) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("creating migrate driver: %w", err)
	}
	if dir != "" {
		m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
		if err != nil {
			return nil, fmt.Errorf("creating migrate instance: %w", err)
		}
		return m, nil
	}
	src, err := iofs.New(FS, ".")
	if err != nil {
		return nil, fmt.Errorf("opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("creating migrate instance: %w", err)
	}
	return m, nil
}

// Up applies all pending migrations and returns the versions before and
// after. A dirty database is refused.
func Up(db *sql.DB) (from, to uint, err error) {
	m, err := New(db, "")
	if err != nil {
		return 0, 0, err
	}
	from, dirty, err := Version(m)
	if err != nil {
		return 0, 0, err
	}
	if dirty {
		return from, from, fmt.Errorf("database is in a dirty state (version %d). Manual intervention required", from)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return from, from, fmt.Errorf("applying migrations: %w", err)
	}
	to, _, err = Version(m)
	return from, to, err
}

// Version reports the applied version, treating an empty database as 0.
func Version(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("checking migration version: %w", err)
	}
	return v, dirty, nil
}
