// Package database provides database connection management and utilities.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Config holds database configuration settings.
type Config struct {
	Driver             string
	ConnectionString   string
	MaxOpenConnections int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	// ConnectTimeout bounds how long Connect keeps retrying the initial ping.
	// Zero means a single attempt.
	ConnectTimeout time.Duration
}

// DriverName maps a configured DB_DRIVER value to the registered database/sql driver.
// PostgreSQL connections go through pgx.
func DriverName(driver string) string {
	if driver == "postgres" {
		return "pgx"
	}
	return driver
}

// Connect establishes a database connection with the given configuration. The first ping
// is retried with exponential backoff so the service can start alongside its database.
func Connect(cfg Config) (*sql.DB, error) {
	return ConnectContext(context.Background(), cfg)
}

// ConnectContext is Connect with a caller supplied context for the ping retries.
func ConnectContext(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open(DriverName(cfg.Driver), cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := pingWithRetry(ctx, db, cfg.ConnectTimeout); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func pingWithRetry(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	if timeout <= 0 {
		return db.PingContext(ctx)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = timeout

	return backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(b, ctx))
}
