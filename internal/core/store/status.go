package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roomgate/roomgate/internal/core"
)

// LoadFlag returns the expiry of a subject's flag. Flags that were never
// written read as nil. Unknown subjects return core.ErrNotFound.
func (s *Store) LoadFlag(ctx context.Context, subjectID string, kind string) (*time.Time, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var activeUntil sql.NullInt64
	row := s.DB.QueryRowContext(ctx, `
		SELECT f.active_until
		FROM subjects s
		LEFT JOIN status_flags f ON f.subject_id = s.subject_id AND f.kind = ?
		WHERE s.subject_id = ?
	`, kind, subjectID)
	if err := row.Scan(&activeUntil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("fetch status flag: %w", err)
	}

	if !activeUntil.Valid {
		return nil, nil
	}
	value := time.UnixMilli(activeUntil.Int64).UTC()
	return &value, nil
}

// SaveFlag writes the expiry of a subject's flag; nil clears it. Concurrent
// writers for the same flag resolve last-write-wins.
func (s *Store) SaveFlag(ctx context.Context, subjectID string, kind string, activeUntil *time.Time) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var until sql.NullInt64
	if activeUntil != nil {
		until = sql.NullInt64{Int64: activeUntil.UTC().UnixMilli(), Valid: true}
	}

	result, err := s.DB.ExecContext(ctx, `
		INSERT INTO status_flags (subject_id, kind, active_until, updated_at)
		SELECT subject_id, ?, ?, ?
		FROM subjects
		WHERE subject_id = ?
		ON CONFLICT(subject_id, kind) DO UPDATE SET
			active_until = excluded.active_until,
			updated_at = excluded.updated_at
	`, kind, until, s.now().Unix(), subjectID)
	if err != nil {
		return fmt.Errorf("store status flag: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store status flag: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}
