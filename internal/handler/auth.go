package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/gatehouse/internal/apperror"
	"github.com/sakif/gatehouse/internal/auth"
	"github.com/sakif/gatehouse/internal/service"
)

// MsgRegistered is flashed on the login page after a successful
// registration.
const MsgRegistered = "Registration successful. Please log in."

// LogoutObserver counts logouts. *metrics.Metrics satisfies it.
type LogoutObserver interface {
	ObserveLogout()
}

// AuthHandler serves the registration, login and logout flows.
//
// HANDLER RESPONSIBILITIES:
//   - ShowRegister / HandleRegister → GET/POST /register
//   - ShowLogin / HandleLogin       → GET/POST /login
//   - HandleLogout                  → GET/POST /logout (behind RequireAuth)
//
// DEPENDENCY CHAIN:
//   - auth     *service.AuthService  → validation, uniqueness, credential checks
//   - sessions *auth.SessionManager  → issues and destroys the session cookie
//   - render   *Renderer             → HTML pages
//   - flashes  *FlashStore           → one-time notices across redirects
type AuthHandler struct {
	auth     *service.AuthService
	sessions *auth.SessionManager
	render   *Renderer
	flashes  *FlashStore
	logouts  LogoutObserver
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. logouts may be nil.
func NewAuthHandler(
	authService *service.AuthService,
	sessions *auth.SessionManager,
	render *Renderer,
	flashes *FlashStore,
	logouts LogoutObserver,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:     authService,
		sessions: sessions,
		render:   render,
		flashes:  flashes,
		logouts:  logouts,
		logger:   logger,
	}
}

// ShowRegister renders an empty registration form.
//
// HTTP: GET /register
func (h *AuthHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	h.render.Page(w, r, http.StatusOK, "register", PageData{Title: "Register"})
}

// HandleRegister creates an account.
//
// HTTP: POST /register
//
// On success the browser is sent to /login with a flash; the new user is
// NOT logged in. Field problems re-render the form (200) with messages
// next to each input.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render.Error(w, r, http.StatusBadRequest)
		return
	}

	in := service.RegisterInput{
		FirstName: r.PostForm.Get("first_name"),
		LastName:  r.PostForm.Get("last_name"),
		Email:     r.PostForm.Get("email"),
		Username:  r.PostForm.Get("username"),
		Password:  r.PostForm.Get("password"),
	}

	_, err := h.auth.Register(r.Context(), in)

	var fieldErrs apperror.FieldErrors
	switch {
	case err == nil:
		h.flashes.Add(w, r, Flash{Kind: FlashSuccess, Message: MsgRegistered})
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)

	case errors.As(err, &fieldErrs):
		h.render.Page(w, r, http.StatusOK, "register", PageData{
			Title: "Register",
			Form: map[string]string{
				"first_name": in.FirstName,
				"last_name":  in.LastName,
				"email":      in.Email,
				"username":   in.Username,
			},
			Errors: fieldErrs.ByField(),
		})

	default:
		h.logger.Error("register: unexpected error", slog.String("error", err.Error()))
		h.render.Error(w, r, http.StatusInternalServerError)
	}
}

// ShowLogin renders an empty login form.
//
// HTTP: GET /login
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	h.render.Page(w, r, http.StatusOK, "login", PageData{Title: "Log in"})
}

// HandleLogin checks credentials and starts a session.
//
// HTTP: POST /login
//
// An unknown username and a wrong password produce byte-identical
// responses: same status, same page, same single message.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render.Error(w, r, http.StatusBadRequest)
		return
	}

	in := service.LoginInput{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	form := map[string]string{"username": in.Username}

	user, err := h.auth.Login(r.Context(), in)

	var fieldErrs apperror.FieldErrors
	switch {
	case err == nil:
		// fall through to session issuance below

	case errors.As(err, &fieldErrs):
		h.render.Page(w, r, http.StatusOK, "login", PageData{
			Title:  "Log in",
			Form:   form,
			Errors: fieldErrs.ByField(),
		})
		return

	case errors.Is(err, apperror.ErrInvalidCredentials):
		h.render.Page(w, r, http.StatusOK, "login", PageData{
			Title:   "Log in",
			Form:    form,
			Flashes: []Flash{{Kind: FlashError, Message: service.MsgInvalidCredentials}},
		})
		return

	default:
		h.logger.Error("login: unexpected error", slog.String("error", err.Error()))
		h.render.Error(w, r, http.StatusInternalServerError)
		return
	}

	if _, err := h.sessions.Issue(w, r, user.ID); err != nil {
		h.logger.Error("login: issuing session",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		h.render.Error(w, r, http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// HandleLogout ends the session and sends the browser to /login.
//
// HTTP: GET or POST /logout (RequireAuth runs first, so an anonymous
// request never reaches here; it is redirected to /login by the gate)
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(w, r); err != nil {
		// The cookie is already cleared; a leftover server-side record
		// will age out via the idle timeout.
		h.logger.Warn("logout: deleting session", slog.String("error", err.Error()))
	}

	if h.logouts != nil {
		h.logouts.ObserveLogout()
	}
	if u, ok := auth.UserFromContext(r.Context()); ok {
		h.logger.Info("user logged out", slog.String("userID", u.ID))
	}

	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}
