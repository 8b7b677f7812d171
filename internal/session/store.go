// Package session stores server-side login sessions.
//
// The browser only ever holds a signed pointer to a session (see
// internal/auth); the binding session id → user id lives here. Keeping it
// server-side is what makes logout real: deleting the record invalidates
// the cookie everywhere, even if someone kept a copy of it.
//
// Two backends are provided:
//   - RedisStore: shared by every replica, survives restarts.
//   - MemoryStore: a bounded in-process LRU for single-node and dev setups.
//
// Both expire records after an idle timeout fixed at construction; Touch
// restarts that countdown.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session id is unknown or has expired.
var ErrNotFound = errors.New("session: not found")

// Session binds an opaque id to a user.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	// ExpiresAt is the absolute end of the session regardless of activity.
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the absolute lifetime has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store persists sessions.
type Store interface {
	// Save creates or replaces s.
	Save(ctx context.Context, s Session) error
	// Get returns ErrNotFound for unknown or idle-expired ids.
	Get(ctx context.Context, id string) (*Session, error)
	// Touch restarts the idle countdown. ErrNotFound if the session is gone.
	Touch(ctx context.Context, id string) error
	// Delete is idempotent: deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
	Close() error
}
