package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roomgate/roomgate/internal/core"
)

// UpsertSubject registers a subject on first sight and refreshes its profile
// afterwards. The original created_at is preserved.
func (s *Store) UpsertSubject(ctx context.Context, subject core.Subject) (*core.Subject, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	id := strings.TrimSpace(subject.ID)
	if id == "" {
		return nil, errors.New("subject id is required")
	}

	now := s.now()
	var avatar sql.NullString
	if url := strings.TrimSpace(subject.AvatarURL); url != "" {
		avatar = sql.NullString{String: url, Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO subjects (subject_id, display_name, avatar_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET
			display_name = CASE WHEN excluded.display_name = '' THEN subjects.display_name ELSE excluded.display_name END,
			avatar_url = COALESCE(excluded.avatar_url, subjects.avatar_url),
			updated_at = excluded.updated_at
	`, id, strings.TrimSpace(subject.DisplayName), avatar, now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("store subject: %w", err)
	}

	return s.GetSubject(ctx, id)
}

// GetSubject returns the stored subject, or nil when it is unknown.
func (s *Store) GetSubject(ctx context.Context, id string) (*core.Subject, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		subject   core.Subject
		avatar    sql.NullString
		createdAt int64
	)
	row := s.DB.QueryRowContext(ctx, `
		SELECT subject_id, display_name, avatar_url, created_at
		FROM subjects
		WHERE subject_id = ?
	`, strings.TrimSpace(id))
	if err := row.Scan(&subject.ID, &subject.DisplayName, &avatar, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch subject: %w", err)
	}
	subject.AvatarURL = avatar.String
	subject.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &subject, nil
}

// ListSubjects returns every registered subject ordered by id.
func (s *Store) ListSubjects(ctx context.Context) ([]core.Subject, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT subject_id, display_name, avatar_url, created_at
		FROM subjects
		ORDER BY subject_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	subjects := []core.Subject{}
	for rows.Next() {
		var (
			subject   core.Subject
			avatar    sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&subject.ID, &subject.DisplayName, &avatar, &createdAt); err != nil {
			return nil, fmt.Errorf("scan subjects: %w", err)
		}
		subject.AvatarURL = avatar.String
		subject.CreatedAt = time.Unix(createdAt, 0).UTC()
		subjects = append(subjects, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}
