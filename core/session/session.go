package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

var ErrNotFound = errors.New("session not found")

// Session is the server side state behind an issued auth token.
type Session struct {
	ID        uuid.UUID `json:"id"`
	AccountID int64     `json:"account_id"`
	Theme     string    `json:"theme"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func New(accountID int64, ttl time.Duration) Session {
	now := time.Now().UTC()
	return Session{
		ID:        uuid.New(),
		AccountID: accountID,
		Theme:     ThemeLight,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func (s Session) Expired() bool {
	return !time.Now().Before(s.ExpiresAt)
}

func (s Session) TTL() time.Duration {
	return time.Until(s.ExpiresAt)
}

// Store is implemented by storage/session.
type Store interface {
	Save(ctx context.Context, sess Session) error
	// Get returns ErrNotFound for unknown or expired sessions.
	Get(ctx context.Context, id uuid.UUID) (Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
