package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Increment bumps a rate counter in a single statement. Rows past their
// expiry restart at one with a fresh expiry; live rows keep theirs.
func (s *Store) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return 0, errors.New("counter key is required")
	}

	now := s.now()
	var count int64
	row := s.DB.QueryRowContext(ctx, `
		INSERT INTO rate_counters (key, count, expires_at)
		VALUES (?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			count = CASE WHEN rate_counters.expires_at <= ? THEN 1 ELSE rate_counters.count + 1 END,
			expires_at = CASE WHEN rate_counters.expires_at <= ? THEN excluded.expires_at ELSE rate_counters.expires_at END
		RETURNING count
	`, key, now.Add(ttl).UnixMilli(), now.UnixMilli(), now.UnixMilli())
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("increment rate counter: %w", err)
	}
	return count, nil
}

// Get returns the live count for key, or zero.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var count int64
	row := s.DB.QueryRowContext(ctx, `
		SELECT count
		FROM rate_counters
		WHERE key = ? AND expires_at > ?
	`, key, s.now().UnixMilli())
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("fetch rate counter: %w", err)
	}
	return count, nil
}

// Delete removes a rate counter.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM rate_counters WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete rate counter: %w", err)
	}
	return nil
}
