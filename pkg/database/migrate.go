package database

import (
	"context"
	"fmt"
)

// users schema per dialect
var usersTable = map[string]string{
	DriverSQLite: `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	role          TEXT NOT NULL DEFAULT 'user',
	avatar        TEXT NOT NULL DEFAULT '',
	cover         TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	is_verified   BOOLEAN NOT NULL DEFAULT 0,
	joined_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`,
	DriverPostgres: `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	role          TEXT NOT NULL DEFAULT 'user',
	avatar        TEXT NOT NULL DEFAULT '',
	cover         TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	is_verified   BOOLEAN NOT NULL DEFAULT FALSE,
	joined_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
}

// Migrate creates the users table if it does not exist
func Migrate(ctx context.Context, db *DB) error {
	ddl, ok := usersTable[db.Driver]
	if !ok {
		return fmt.Errorf("no schema for driver %q", db.Driver)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("apply users schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_users_joined_at ON users (joined_at)`); err != nil {
		return fmt.Errorf("create users index: %w", err)
	}
	return nil
}
