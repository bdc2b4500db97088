package database

import (
	"context"
	"fmt"
)

// schema holds the DDL for all Flower Core tables. Statements are
// idempotent so Migrate can run on every startup.
//
// Runtime-only device fields (connection status, flower status, brightness)
// are deliberately absent: they are reset on every load and never persisted.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS flowers (
		id        INTEGER PRIMARY KEY CHECK (id BETWEEN 1 AND 999),
		category  TEXT    NOT NULL,
		bus_id    TEXT    NOT NULL DEFAULT '',
		priority  INTEGER NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS buses (
		id                 TEXT PRIMARY KEY,
		type               TEXT    NOT NULL,
		port               TEXT    NOT NULL DEFAULT '',
		baud               INTEGER NOT NULL DEFAULT 0,
		host               TEXT    NOT NULL DEFAULT '',
		tcp_port           INTEGER NOT NULL DEFAULT 0,
		unit_id            INTEGER NOT NULL DEFAULT 1,
		connect_timeout_ms INTEGER NOT NULL DEFAULT 2000
	)`,
	`CREATE TABLE IF NOT EXISTS shows (
		id         TEXT PRIMARY KEY,
		title      TEXT    NOT NULL,
		repeat     INTEGER NOT NULL DEFAULT 0,
		tracks     TEXT    NOT NULL DEFAULT '[]',
		updated_at TEXT    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_flowers_bus ON flowers(bus_id)`,
}

// Migrate creates any missing tables and indexes.
// Safe to call on every startup.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
