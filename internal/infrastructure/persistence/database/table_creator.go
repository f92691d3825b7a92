package database

import (
	"context"
	"fmt"
	"time"
)

// TableCreator handles the creation of the session store schema.
type TableCreator struct{}

// NewTableCreator creates a new TableCreator.
func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

// CreateSchema executes all necessary queries to build the tables and indexes. It is idempotent.
func (tc *TableCreator) CreateSchema(ctx context.Context, db *DB) error {
	start := time.Now()

	for _, tableSQL := range tables {
		if _, err := db.ExecContext(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}

	db.CheckSlowQuery("SCHEMA_CREATE", time.Since(start))
	return nil
}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS sessions (id TEXT PRIMARY KEY, owner_id TEXT NOT NULL, status TEXT NOT NULL, started_at TEXT NOT NULL, ended_at TEXT)`,
	`CREATE TABLE IF NOT EXISTS feature_logs (id TEXT PRIMARY KEY, session_id TEXT, received_at TEXT NOT NULL, client_timestamp TEXT, facial TEXT, gaze TEXT, voice TEXT, extras TEXT)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_sessions_owner_id ON sessions(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_status_ended_at ON sessions(status, ended_at)`,
	`CREATE INDEX IF NOT EXISTS idx_feature_logs_session_id ON feature_logs(session_id)`,
}
