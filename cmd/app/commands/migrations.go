package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/allisson/mailqueue/internal/config"
)

// RunMigrations applies all pending migrations for the configured driver. The memory
// store has no schema and is a no-op. Returns nil if there is nothing to apply.
func RunMigrations(logger *slog.Logger, dbDriver, dbConnectionString string) error {
	if dbDriver == config.DBDriverMemory {
		logger.Info("memory store selected, no migrations to run")
		return nil
	}

	logger.Info("running database migrations",
		slog.String("driver", dbDriver),
	)

	migrationsPath := "file://migrations/postgresql"
	if dbDriver == config.DBDriverMySQL {
		migrationsPath = "file://migrations/mysql"
	}

	m, err := migrate.New(migrationsPath, migrationDatabaseURL(dbDriver, dbConnectionString))
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("migrations completed successfully")
	return nil
}

// migrationDatabaseURL turns a database/sql DSN into the URL form migrate expects.
// MySQL DSNs such as user:pass@tcp(host:3306)/db get the mysql:// scheme.
func migrationDatabaseURL(dbDriver, dsn string) string {
	if dbDriver == config.DBDriverMySQL && !strings.HasPrefix(dsn, "mysql://") {
		return "mysql://" + dsn
	}
	return dsn
}
