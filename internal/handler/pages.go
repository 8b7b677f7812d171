package handler

import (
	"net/http"

	"github.com/sakif/gatehouse/internal/auth"
)

// PageHandler serves the home page and the protected dashboard.
type PageHandler struct {
	render *Renderer
}

func NewPageHandler(render *Renderer) *PageHandler {
	return &PageHandler{render: render}
}

// HandleHome renders the public landing page.
//
// HTTP: GET /
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	h.render.Page(w, r, http.StatusOK, "home", PageData{Title: "Home"})
}

// HandleDashboard renders the protected view.
//
// HTTP: GET or POST /dashboard (behind RequireAuth)
func (h *PageHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		// Only reachable if the route is mounted without the gate.
		http.Redirect(w, r, auth.LoginPath, http.StatusFound)
		return
	}

	h.render.Page(w, r, http.StatusOK, "dashboard", PageData{
		Title: "Dashboard",
		User:  user,
	})
}
