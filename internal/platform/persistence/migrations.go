package persistence

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver
)

// RunMigrations brings the service's schema up to date from its file-based
// migration directory (e.g. migrations/ledger). Runs before the pool opens;
// an already-current schema is not an error.
func RunMigrations(databaseURL, migrationsPath string) error {
	if databaseURL == "" {
		return errors.New("database URL is required for migrations")
	}
	if migrationsPath == "" {
		return errors.New("migrations path is required")
	}

	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations from %s: %w", migrationsPath, err)
	}

	upErr := m.Up()
	sourceErr, dbErr := m.Close()

	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}
	if sourceErr != nil {
		return fmt.Errorf("migration source close error: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("migration database close error: %w", dbErr)
	}

	return nil
}
