package sqlstore

import (
	"context"
	"fmt"
)

// Column types are limited to what both PostgreSQL and SQLite accept.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id                    TEXT PRIMARY KEY,
		email                 TEXT NOT NULL UNIQUE,
		name                  TEXT NOT NULL,
		password_hash         TEXT NOT NULL,
		role                  TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
		is_active             BOOLEAN NOT NULL DEFAULT TRUE,
		email_verified        BOOLEAN NOT NULL DEFAULT FALSE,
		failed_login_attempts INTEGER NOT NULL DEFAULT 0,
		locked_until          TIMESTAMP NULL,
		last_login            TIMESTAMP NULL,
		invite_code_used      TEXT NULL,
		created_at            TIMESTAMP NOT NULL,
		updated_at            TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_role ON accounts (role)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_created_at ON accounts (created_at)`,
	`CREATE TABLE IF NOT EXISTS invite_codes (
		id           TEXT PRIMARY KEY,
		code         TEXT NOT NULL UNIQUE,
		created_by   TEXT NOT NULL REFERENCES accounts (id),
		max_uses     INTEGER NOT NULL DEFAULT 1,
		current_uses INTEGER NOT NULL DEFAULT 0,
		expires_at   TIMESTAMP NULL,
		is_active    BOOLEAN NOT NULL DEFAULT TRUE,
		created_at   TIMESTAMP NOT NULL,
		CHECK (current_uses <= max_uses)
	)`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NULL REFERENCES accounts (id),
		action     TEXT NOT NULL,
		details    TEXT NOT NULL DEFAULT '{}',
		ip_address TEXT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_logs_created_at ON activity_logs (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_logs_user_id ON activity_logs (user_id)`,
}

// EnsureSchema creates missing tables and indexes, one statement per call
// since pgx cannot prepare multi-statement queries.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
