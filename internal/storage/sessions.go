package storage

import (
	"context"
	"fmt"
	"time"

	"dotproduct/internal/core"
)

func (r *SQLiteRepository) CreateSession(ctx context.Context, s core.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token_hash, user_id, csrf_token, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		s.TokenHash, s.UserID, s.CSRFToken, formatTimestamp(s.CreatedAt), formatTimestamp(s.ExpiresAt))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns the session stored under tokenHash, expired or not.
func (r *SQLiteRepository) GetSession(ctx context.Context, tokenHash string) (core.Session, error) {
	var (
		s                    core.Session
		createdAt, expiresAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT token_hash, user_id, csrf_token, created_at, expires_at FROM sessions WHERE token_hash = ?`,
		tokenHash).Scan(&s.TokenHash, &s.UserID, &s.CSRFToken, &createdAt, &expiresAt)
	if err != nil {
		return core.Session{}, fmt.Errorf("get session: %w", notFound(err))
	}
	if s.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return core.Session{}, err
	}
	if s.ExpiresAt, err = parseTimestamp(expiresAt); err != nil {
		return core.Session{}, err
	}
	return s, nil
}

// DeleteSession removes the session. Deleting an unknown session is not an error.
func (r *SQLiteRepository) DeleteSession(ctx context.Context, tokenHash string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, tokenHash); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions purges sessions whose expiry is at or before now.
func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, formatTimestamp(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: rows affected: %w", err)
	}
	return n, nil
}
