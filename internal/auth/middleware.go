package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/gatehouse/internal/apperror"
	"github.com/sakif/gatehouse/internal/model"
)

// LoginPath is where anonymous requests to protected routes are sent.
const LoginPath = "/login"

// contextKey is unexported so only this package can read or write the
// values it stores in a request context.
type contextKey string

const userKey contextKey = "user"

// UserLookup loads a user by id. Both repository.UserRepository and
// service.AuthService satisfy it.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// RequireAuth is the access gate for protected routes.
//
// States are Anonymous and Authenticated. A request is Authenticated only
// if all of these hold:
//   - the session cookie carries a valid signed token
//   - the server-side session exists and hasn't expired
//   - the user it names still exists in the Credential Store and is active
//
// Anything else is Anonymous and gets a 302 to /login; nothing is written
// except clearing a stale cookie. Store outages are 500s, not Anonymous.
func RequireAuth(sessions *SessionManager, users UserLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveUser(w, r, sessions, users, logger)
			if err != nil {
				logger.Error("access gate: resolving session",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if user == nil {
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// OptionalAuth attaches the user when the request has a valid session but
// never blocks. Public pages use it to render "logged in as ..." state.
// Lookup failures are logged and the request continues as anonymous.
func OptionalAuth(sessions *SessionManager, users UserLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveUser(w, r, sessions, users, logger)
			if err != nil {
				logger.Warn("optional auth: resolving session",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
			}
			if user != nil {
				r = r.WithContext(WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolveUser returns (nil, nil) for anonymous requests.
func resolveUser(w http.ResponseWriter, r *http.Request, sessions *SessionManager, users UserLookup, logger *slog.Logger) (*model.User, error) {
	s, err := sessions.Resolve(r)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil, nil
		}
		return nil, err
	}

	user, err := users.GetUserByID(r.Context(), s.UserID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		user = nil
	}

	// Fail closed: the session outlived its user (or the user is disabled).
	if user == nil || !user.IsActive() {
		logger.Info("access gate: session refers to missing or inactive user",
			slog.String("userID", s.UserID),
		)
		if err := sessions.Destroy(w, r); err != nil {
			logger.Warn("access gate: destroying stale session", slog.String("error", err.Error()))
		}
		return nil, nil
	}

	return user, nil
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext retrieves the authenticated user.
//
// Returns (nil, false) if the request is anonymous.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u.IsAuthenticated()
}
