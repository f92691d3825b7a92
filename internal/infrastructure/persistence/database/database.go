// Package database provides the core functionality for creating and managing
// database connections in a clean, isolated manner.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// Store names accepted by DriverFor
const (
	StoreSQLite = "sqlite"
	StoreLibSQL = "libsql"
)

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
	logger             *logging.ChanneledLogger
	slowQueryThreshold time.Duration
}

// Options tunes the connection pool
type Options struct {
	MaxOpenConns       int
	MaxIdleConns       int
	SlowQueryThreshold time.Duration
}

// DriverFor maps a store name onto its registered database/sql driver
func DriverFor(store string) (string, error) {
	switch store {
	case StoreSQLite:
		return "sqlite3", nil
	case StoreLibSQL:
		return "libsql", nil
	default:
		return "", fmt.Errorf("unsupported session store %q", store)
	}
}

// NewConnectionWithLogger establishes a new database connection for the specified driver with logging.
func NewConnectionWithLogger(ctx context.Context, driverName, dataSourceName string, opts Options, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()
	logger.Database().Debug("Creating new database connection", "driverName", driverName)

	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		logger.Database().Error("Failed to open database connection", "error", err.Error(), "driverName", driverName)
		return nil, err
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}

	if err = db.PingContext(ctx); err != nil {
		logger.Database().Error("Database ping failed", "error", err.Error(), "driverName", driverName)
		db.Close()
		return nil, err
	}

	duration := time.Since(start)
	logger.Database().Info("Database connection established", "driverName", driverName, "duration", duration)

	wrapped := &DB{DB: db, logger: logger, slowQueryThreshold: opts.SlowQueryThreshold}
	wrapped.CheckSlowQuery("DATABASE_CONNECTION", duration)
	return wrapped, nil
}
