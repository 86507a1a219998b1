package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending schema migrations from the embedded set.
func Migrate(databaseURL string, log *logrus.Logger) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, verr := m.Version()
	switch {
	case errors.Is(verr, migrate.ErrNilVersion):
		log.Info("migrations: database is up to date (no migrations applied)")
	case verr != nil:
		return fmt.Errorf("failed to get migration version: %w", verr)
	case dirty:
		return fmt.Errorf("migration version %d is dirty, manual intervention required", version)
	case errors.Is(err, migrate.ErrNoChange):
		log.WithField("version", version).Info("migrations: database is up to date")
	default:
		log.WithField("version", version).Info("migrations: applied successfully")
	}

	return nil
}
