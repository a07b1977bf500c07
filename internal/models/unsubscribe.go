package models

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Unsubscribe records a digest recipient who opted out. Opt-outs are
// permanent; the send path checks this table before dispatch.
type Unsubscribe struct {
	Email          string    `json:"email"`
	Token          string    `json:"token"`
	UnsubscribedAt time.Time `json:"unsubscribedAt"`
}

// UnsubscribeStore provides data access methods for digest opt-outs.
type UnsubscribeStore struct {
	db *sql.DB
}

// NewUnsubscribeStore creates a new UnsubscribeStore.
func NewUnsubscribeStore(db *sql.DB) *UnsubscribeStore {
	return &UnsubscribeStore{db: db}
}

// Add records an opt-out. Repeating an opt-out is not an error.
func (s *UnsubscribeStore) Add(ctx context.Context, email, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO unsubscribes (email, token, unsubscribed_at)
		VALUES (?, ?, ?)
	`, email, token, fmtTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("unsubscribe add: %w", err)
	}
	return nil
}

// Contains reports whether the email has opted out.
func (s *UnsubscribeStore) Contains(ctx context.Context, email string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM unsubscribes WHERE email = ?`, email).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("unsubscribe contains: %w", err)
	}
	return n > 0, nil
}

// RecordToken stores the per-recipient token minted for one digest send, so
// the unsubscribe link can be mapped back to an address later. Tokens from
// older sends stay valid; re-issuing a token value replaces its row.
func (s *UnsubscribeStore) RecordToken(ctx context.Context, token, email string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO digest_tokens (token, email, issued_at)
		VALUES (?, ?, ?)
	`, token, email, fmtTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("unsubscribe record token: %w", err)
	}
	return nil
}

// EmailForToken resolves an unsubscribe token to the address it was issued
// for. Unknown tokens return the empty string, not an error.
func (s *UnsubscribeStore) EmailForToken(ctx context.Context, token string) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx,
		`SELECT email FROM digest_tokens WHERE token = ?`, token).Scan(&email)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("unsubscribe token lookup: %w", err)
	}
	return email, nil
}
