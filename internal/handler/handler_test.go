package handler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/gatehouse/internal/auth"
	"github.com/sakif/gatehouse/internal/handler"
	"github.com/sakif/gatehouse/internal/model"
	sqliteRepo "github.com/sakif/gatehouse/internal/repository/sqlite"
	"github.com/sakif/gatehouse/internal/service"
	"github.com/sakif/gatehouse/internal/session"
	"github.com/sakif/gatehouse/web"
)

type testEnv struct {
	db       *sqliteRepo.DB
	svc      *service.AuthService
	sessions *auth.SessionManager
	render   *handler.Renderer
	auth     *handler.AuthHandler
	pages    *handler.PageHandler
	logouts  *countingObserver
}

type countingObserver struct{ n int }

func (c *countingObserver) ObserveLogout() { c.n++ }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)

	store := session.NewMemoryStore(100, time.Minute)
	t.Cleanup(func() { store.Close() })

	sessions := auth.NewSessionManager(store, tokens, auth.SessionConfig{Lifetime: time.Hour})
	flashes := handler.NewFlashStore("test-secret-at-least-16-chars!!", false, logger)

	render, err := handler.NewRenderer(web.Templates(), flashes, logger)
	require.NoError(t, err)

	svc := service.NewAuthService(db, auth.NewPasswordServiceForTest(4), nil, logger)
	logouts := &countingObserver{}

	return &testEnv{
		db:       db,
		svc:      svc,
		sessions: sessions,
		render:   render,
		auth:     handler.NewAuthHandler(svc, sessions, render, flashes, logouts, logger),
		pages:    handler.NewPageHandler(render),
		logouts:  logouts,
	}
}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func registrationForm(username, email string) url.Values {
	return url.Values{
		"first_name": {"Alice"},
		"last_name":  {"Liddell"},
		"email":      {email},
		"username":   {username},
		"password":   {"Passw0rd!"},
	}
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// =========================================================================
// Register
// =========================================================================

func TestShowRegister(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()

	env.auth.ShowRegister(rec, httptest.NewRequest(http.MethodGet, "/register", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	for _, field := range []string{"first_name", "last_name", "email", "username", "password"} {
		assert.Contains(t, body, `name="`+field+`"`)
	}
}

func TestHandleRegister_Success(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()

	env.auth.HandleRegister(rec, postForm("/register", registrationForm("alice2024", "a@x.com")))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.NotNil(t, cookieNamed(rec, "gatehouse_flash"), "success flash should ride the redirect")
	assert.Nil(t, cookieNamed(rec, "gatehouse_session"), "registration must not log the user in")

	u, err := env.db.GetByUsername(context.Background(), "alice2024")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", u.Email)
}

func TestHandleRegister_FlashShownOnLoginPage(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.auth.HandleRegister(rec, postForm("/register", registrationForm("alice2024", "a@x.com")))

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(cookieNamed(rec, "gatehouse_flash"))
	loginRec := httptest.NewRecorder()
	env.auth.ShowLogin(loginRec, req)

	assert.Contains(t, loginRec.Body.String(), handler.MsgRegistered)
}

func TestHandleRegister_DuplicateUsername(t *testing.T) {
	env := newTestEnv(t)

	first := httptest.NewRecorder()
	env.auth.HandleRegister(first, postForm("/register", registrationForm("bob01", "bob@x.com")))
	require.Equal(t, http.StatusSeeOther, first.Code)

	rec := httptest.NewRecorder()
	env.auth.HandleRegister(rec, postForm("/register", registrationForm("bob01", "bob2@x.com")))

	assert.Equal(t, http.StatusOK, rec.Code, "field errors re-render, never 4xx/5xx")
	body := rec.Body.String()
	assert.Contains(t, body, "This username already exists. Please choose a different one.")
	assert.Contains(t, body, `value="bob2@x.com"`, "submitted values are echoed")
	assert.NotContains(t, body, "Passw0rd!", "passwords are never echoed")

	_, err := env.db.GetByEmail(context.Background(), "bob2@x.com")
	assert.Error(t, err, "no second record")
}

func TestHandleRegister_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()

	form := registrationForm("al", "nope")
	env.auth.HandleRegister(rec, postForm("/register", form))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Invalid email address.")
	assert.Contains(t, body, "Field must be between 4 and 20 characters long.")
}

// =========================================================================
// Login
// =========================================================================

func register(t *testing.T, env *testEnv) *model.User {
	t.Helper()
	u, err := env.svc.Register(context.Background(), service.RegisterInput{
		FirstName: "Alice", LastName: "Liddell", Email: "a@x.com",
		Username: "alice2024", Password: "Passw0rd!",
	})
	require.NoError(t, err)
	return u
}

func TestHandleLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	register(t, env)

	rec := httptest.NewRecorder()
	env.auth.HandleLogin(rec, postForm("/login", url.Values{
		"username": {"alice2024"}, "password": {"Passw0rd!"},
	}))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	c := cookieNamed(rec, env.sessions.CookieName())
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
}

func TestHandleLogin_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	register(t, env)

	attempt := func(username, password string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		env.auth.HandleLogin(rec, postForm("/login", url.Values{
			"username": {username}, "password": {password},
		}))
		return rec
	}

	unknown := attempt("zzzz9999", "Passw0rd!")
	wrongPass := attempt("alice2024", "WrongPass1")

	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, http.StatusOK, wrongPass.Code)
	assert.Contains(t, unknown.Body.String(), "Invalid username or password")
	assert.Contains(t, wrongPass.Body.String(), "Invalid username or password")
	assert.Nil(t, cookieNamed(unknown, env.sessions.CookieName()))
	assert.Nil(t, cookieNamed(wrongPass, env.sessions.CookieName()))

	// Apart from the echoed username the pages are byte-identical.
	a := strings.ReplaceAll(unknown.Body.String(), "zzzz9999", "USER")
	b := strings.ReplaceAll(wrongPass.Body.String(), "alice2024", "USER")
	assert.Equal(t, a, b)
}

func TestHandleLogin_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()

	env.auth.HandleLogin(rec, postForm("/login", url.Values{"username": {""}, "password": {"x"}}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "This field is required.")
	assert.NotContains(t, rec.Body.String(), "Invalid username or password")
}

// =========================================================================
// Logout and dashboard
// =========================================================================

func TestHandleLogout(t *testing.T) {
	env := newTestEnv(t)
	u := register(t, env)

	loginRec := httptest.NewRecorder()
	_, err := env.sessions.Issue(loginRec, httptest.NewRequest(http.MethodPost, "/login", nil), u.ID)
	require.NoError(t, err)
	sessionCookie := cookieNamed(loginRec, env.sessions.CookieName())

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(sessionCookie)
	req = req.WithContext(auth.WithUser(req.Context(), u))

	rec := httptest.NewRecorder()
	env.auth.HandleLogout(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Equal(t, 1, env.logouts.n)

	check := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	check.AddCookie(sessionCookie)
	_, err = env.sessions.Resolve(check)
	assert.True(t, errors.Is(err, auth.ErrNoSession))
}

func TestHandleDashboard(t *testing.T) {
	env := newTestEnv(t)
	u := register(t, env)

	t.Run("with user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req = req.WithContext(auth.WithUser(req.Context(), u))
		rec := httptest.NewRecorder()

		env.pages.HandleDashboard(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "Alice Liddell")
		assert.Contains(t, body, "a@x.com")
		assert.NotContains(t, body, u.PasswordHash)
	})

	t.Run("without user", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.pages.HandleDashboard(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})
}

func TestHandleHome(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()

	env.pages.HandleHome(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome to Gatehouse")
}

func TestStoreFailureRendersErrorPage(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Close())

	t.Run("register", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.auth.HandleRegister(rec, postForm("/register", registrationForm("alice2024", "a@x.com")))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "Internal Server Error")
		assert.NotContains(t, rec.Body.String(), "database is closed")
	})

	t.Run("login", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.auth.HandleLogin(rec, postForm("/login", url.Values{
			"username": {"alice2024"}, "password": {"Passw0rd!"},
		}))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "Invalid username or password")
		assert.Nil(t, cookieNamed(rec, env.sessions.CookieName()))
	})
}

func TestRenderer_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()

	env.render.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not Found")
}
