package domain

import (
	"context"
	"time"
)

// Session is the credential issued on sign-in. Callers only ever hold the
// signed token that references it.
type Session struct {
	ID        string
	AccountID string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session can still authenticate requests at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	// Revoke marks the session as destroyed. Revoking an unknown or already
	// revoked session returns ErrNotFound.
	Revoke(ctx context.Context, id string) error
}
