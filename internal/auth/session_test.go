package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/gatehouse/internal/session"
)

func newTestSessionManager(t *testing.T, idle time.Duration) (*SessionManager, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore(100, idle)
	t.Cleanup(func() { store.Close() })
	return NewSessionManager(store, newTestTokenService(t), SessionConfig{Lifetime: time.Hour}), store
}

// sessionCookie returns the session cookie set on rec, or nil.
func sessionCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// issue logs userID in and returns the cookie the browser would hold.
func issue(t *testing.T, m *SessionManager, userID string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)

	_, err := m.Issue(rec, req, userID)
	require.NoError(t, err)

	c := sessionCookie(rec, m.CookieName())
	require.NotNil(t, c, "Issue should set the session cookie")
	return c
}

func requestWith(c *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	if c != nil {
		req.AddCookie(c)
	}
	return req
}

func TestIssue_SetsHardenedCookie(t *testing.T) {
	m, store := newTestSessionManager(t, time.Minute)

	c := issue(t, m, "user-1")

	assert.Equal(t, "gatehouse_session", c.Name)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, int(time.Hour.Seconds()), c.MaxAge)
	assert.Equal(t, 1, store.Len())
}

func TestResolve_RoundTrip(t *testing.T) {
	m, _ := newTestSessionManager(t, time.Minute)
	c := issue(t, m, "user-1")

	s, err := m.Resolve(requestWith(c))
	require.NoError(t, err)
	assert.Equal(t, "user-1", s.UserID)
}

func TestResolve_Anonymous(t *testing.T) {
	m, _ := newTestSessionManager(t, time.Minute)

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"no cookie", nil},
		{"garbage", &http.Cookie{Name: "gatehouse_session", Value: "nope"}},
		{"empty", &http.Cookie{Name: "gatehouse_session", Value: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Resolve(requestWith(tt.cookie))
			assert.True(t, errors.Is(err, ErrNoSession), "got %v", err)
		})
	}
}

func TestResolve_ForgedSessionID(t *testing.T) {
	m, _ := newTestSessionManager(t, time.Minute)

	// Correctly signed, but the store has never heard of this session.
	now := time.Now()
	token, err := m.tokens.Generate("made-up", "user-1", now, now.Add(time.Hour))
	require.NoError(t, err)

	_, err = m.Resolve(requestWith(&http.Cookie{Name: m.CookieName(), Value: token}))
	assert.True(t, errors.Is(err, ErrNoSession))
}

func TestResolve_UserMismatch(t *testing.T) {
	m, store := newTestSessionManager(t, time.Minute)
	c := issue(t, m, "user-1")

	claims, err := m.tokens.Validate(c.Value)
	require.NoError(t, err)

	// Same session id, different subject.
	now := time.Now()
	token, err := m.tokens.Generate(claims.SessionID, "user-2", now, now.Add(time.Hour))
	require.NoError(t, err)

	_, err = m.Resolve(requestWith(&http.Cookie{Name: m.CookieName(), Value: token}))
	assert.True(t, errors.Is(err, ErrNoSession))

	_, err = store.Get(context.Background(), claims.SessionID)
	assert.True(t, errors.Is(err, session.ErrNotFound), "mismatched session should be deleted")
}

func TestResolve_PastAbsoluteLifetime(t *testing.T) {
	m, _ := newTestSessionManager(t, time.Hour)
	c := issue(t, m, "user-1")

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err := m.Resolve(requestWith(c))
	assert.True(t, errors.Is(err, ErrNoSession))
}

func TestResolve_IdleTimeout(t *testing.T) {
	m, _ := newTestSessionManager(t, 50*time.Millisecond)
	c := issue(t, m, "user-1")

	time.Sleep(120 * time.Millisecond)

	_, err := m.Resolve(requestWith(c))
	assert.True(t, errors.Is(err, ErrNoSession))
}

func TestIssue_RotatesExistingSession(t *testing.T) {
	m, store := newTestSessionManager(t, time.Minute)
	old := issue(t, m, "user-1")

	rec := httptest.NewRecorder()
	_, err := m.Issue(rec, requestWith(old), "user-1")
	require.NoError(t, err)

	fresh := sessionCookie(rec, m.CookieName())
	require.NotNil(t, fresh)
	assert.NotEqual(t, old.Value, fresh.Value)
	assert.Equal(t, 1, store.Len(), "old session should be gone")

	_, err = m.Resolve(requestWith(old))
	assert.True(t, errors.Is(err, ErrNoSession))
	_, err = m.Resolve(requestWith(fresh))
	assert.NoError(t, err)
}

func TestDestroy(t *testing.T) {
	m, store := newTestSessionManager(t, time.Minute)
	c := issue(t, m, "user-1")

	rec := httptest.NewRecorder()
	require.NoError(t, m.Destroy(rec, requestWith(c)))

	cleared := sessionCookie(rec, m.CookieName())
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
	assert.Equal(t, 0, store.Len())

	_, err := m.Resolve(requestWith(c))
	assert.True(t, errors.Is(err, ErrNoSession), "old cookie must not resolve after logout")
}

func TestDestroy_Anonymous(t *testing.T) {
	m, _ := newTestSessionManager(t, time.Minute)
	rec := httptest.NewRecorder()

	assert.NoError(t, m.Destroy(rec, requestWith(nil)))
	assert.NotNil(t, sessionCookie(rec, m.CookieName()))
}

func TestNewSessionID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := newSessionID()
		require.NoError(t, err)
		assert.Len(t, id, 43)
		assert.False(t, seen[id], "duplicate session id")
		seen[id] = true
	}
}
