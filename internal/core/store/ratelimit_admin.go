package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type CounterEntry struct {
	Key       string
	Count     int64
	ExpiresAt time.Time
	Expired   bool
}

type CounterQuery struct {
	All    bool
	Key    string
	Prefix string
}

func (q CounterQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Key) != "" {
		return nil
	}
	if strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --key, or --prefix")
}

func (q CounterQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	if key := strings.TrimSpace(q.Key); key != "" {
		return "WHERE key = ?", []any{key}, nil
	}
	prefix := strings.TrimSpace(q.Prefix)
	if prefix == "" {
		return "", nil, errors.New("prefix is required")
	}
	return "WHERE key LIKE ?", []any{prefix + "%"}, nil
}

func (s *Store) ListCounters(ctx context.Context, q CounterQuery) ([]CounterEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT key, count, expires_at
		FROM rate_counters
		%s
		ORDER BY key
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list rate counters: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	now := s.now()
	entries := []CounterEntry{}
	for rows.Next() {
		var (
			entry     CounterEntry
			expiresAt int64
		)
		if err := rows.Scan(&entry.Key, &entry.Count, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan rate counters: %w", err)
		}
		entry.ExpiresAt = time.UnixMilli(expiresAt).UTC()
		entry.Expired = !entry.ExpiresAt.After(now)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate counters: %w", err)
	}

	return entries, nil
}

func (s *Store) CountCounters(ctx context.Context, q CounterQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM rate_counters
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count rate counters: %w", err)
	}
	return count, nil
}

func (s *Store) ResetCounters(ctx context.Context, q CounterQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM rate_counters
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset rate counters: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset rate counters: %w", err)
	}
	return affected, nil
}

// PruneExpiredCounters deletes counters whose window has passed.
func (s *Store) PruneExpiredCounters(ctx context.Context) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM rate_counters WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune rate counters: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rate counters: %w", err)
	}
	return affected, nil
}
