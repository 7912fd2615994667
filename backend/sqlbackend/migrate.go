package sqlbackend

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// runMigrations brings the database schema up to date using golang-migrate.
// dialect selects the database driver: "postgres" or "sqlite3". The
// migrate driver is built on gorm's own *sql.DB handle, so it is not
// closed here: closing it would close the connection gorm keeps using.
func runMigrations(db *gorm.DB, dialect string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("sqlbackend: getting *sql.DB for migration: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("sqlbackend: loading embedded migrations: %w", err)
	}

	var m *migrate.Migrate
	switch dialect {
	case "postgres":
		drv, err := postgres.WithInstance(sqlDB, &postgres.Config{})
		if err != nil {
			return fmt.Errorf("sqlbackend: postgres migration driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "postgres", drv)
		if err != nil {
			return fmt.Errorf("sqlbackend: building migrator: %w", err)
		}
	case "sqlite3":
		drv, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
		if err != nil {
			return fmt.Errorf("sqlbackend: sqlite3 migration driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "sqlite3", drv)
		if err != nil {
			return fmt.Errorf("sqlbackend: building migrator: %w", err)
		}
	default:
		return fmt.Errorf("sqlbackend: unknown dialect %q", dialect)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlbackend: running migrations: %w", err)
	}
	return nil
}
