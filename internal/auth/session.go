package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/sakif/gatehouse/internal/session"
)

// ErrNoSession means the request is anonymous: no cookie, a cookie that
// fails validation, or a session that has ended. Any other error from
// Resolve is an infrastructure failure.
var ErrNoSession = errors.New("auth: no valid session")

// SessionConfig is the explicit session policy.
type SessionConfig struct {
	CookieName string
	// Lifetime is the absolute lifetime from login.
	Lifetime time.Duration
	// Secure marks the cookie HTTPS-only.
	Secure bool
}

// SessionManager issues, resolves and destroys login sessions.
//
// DEPENDENCIES:
//   - store  session.Store   → server-side {id → user} records
//   - tokens *TokenService   → signs the cookie value
type SessionManager struct {
	store  session.Store
	tokens *TokenService
	cfg    SessionConfig
	now    func() time.Time
}

// NewSessionManager wires a SessionManager. The idle timeout lives in the
// store; Lifetime here is the hard cap.
func NewSessionManager(store session.Store, tokens *TokenService, cfg SessionConfig) *SessionManager {
	if cfg.CookieName == "" {
		cfg.CookieName = "gatehouse_session"
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = 12 * time.Hour
	}
	return &SessionManager{
		store:  store,
		tokens: tokens,
		cfg:    cfg,
		now:    time.Now,
	}
}

// CookieName returns the name of the session cookie.
func (m *SessionManager) CookieName() string { return m.cfg.CookieName }

// Issue starts a new session for userID and sets the cookie on w.
//
// Any session the request already carried is destroyed first, so every
// login gets a fresh id (a session fixed before login is useless after).
func (m *SessionManager) Issue(w http.ResponseWriter, r *http.Request, userID string) (*session.Session, error) {
	ctx := r.Context()

	if claims, err := m.claimsFrom(r); err == nil {
		if err := m.store.Delete(ctx, claims.SessionID); err != nil {
			return nil, fmt.Errorf("auth: rotating session: %w", err)
		}
	}

	id, err := newSessionID()
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	s := session.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.Lifetime),
	}

	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("auth: saving session: %w", err)
	}

	token, err := m.tokens.Generate(s.ID, s.UserID, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		_ = m.store.Delete(ctx, s.ID)
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(m.cfg.Lifetime.Seconds()),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	return &s, nil
}

// Resolve maps the request's cookie to a live session and restarts its
// idle countdown. It returns ErrNoSession for anonymous requests.
func (m *SessionManager) Resolve(r *http.Request) (*session.Session, error) {
	ctx := r.Context()

	claims, err := m.claimsFrom(r)
	if err != nil {
		return nil, ErrNoSession
	}

	s, err := m.store.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("auth: loading session: %w", err)
	}

	// The token and the stored record must agree on whose session this is.
	if s.UserID != claims.UserID || s.Expired(m.now()) {
		_ = m.store.Delete(ctx, s.ID)
		return nil, ErrNoSession
	}

	if err := m.store.Touch(ctx, s.ID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("auth: touching session: %w", err)
	}

	return s, nil
}

// Destroy ends the request's session, if any, and clears the cookie.
// Calling it on an anonymous request is a no-op apart from the cookie reset.
func (m *SessionManager) Destroy(w http.ResponseWriter, r *http.Request) error {
	var err error
	if claims, cerr := m.claimsFrom(r); cerr == nil {
		err = m.deleteSession(r.Context(), claims.SessionID)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	return err
}

func (m *SessionManager) deleteSession(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("auth: deleting session: %w", err)
	}
	return nil
}

func (m *SessionManager) claimsFrom(r *http.Request) (*TokenClaims, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return nil, err
	}
	return m.tokens.Validate(cookie.Value)
}

// newSessionID returns 256 bits from crypto/rand, URL-safe encoded.
func newSessionID() (string, error) {
	key := securecookie.GenerateRandomKey(32)
	if key == nil {
		return "", errors.New("auth: generating session id: random source failed")
	}
	return base64.RawURLEncoding.EncodeToString(key), nil
}
