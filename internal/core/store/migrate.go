package store

import (
	"context"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS subjects (
		subject_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		avatar_url TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS status_flags (
		subject_id TEXT NOT NULL REFERENCES subjects(subject_id),
		kind TEXT NOT NULL,
		active_until INTEGER,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (subject_id, kind)
	);`,
	`CREATE TABLE IF NOT EXISTS rate_counters (
		key TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 0,
		expires_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_rate_counters_expires ON rate_counters(expires_at);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}
