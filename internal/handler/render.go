// Package handler contains the HTTP handlers: HTML pages for the
// registration, login and dashboard flows, plus the JSON health check.
//
// Handlers are glue between HTTP and the service layer:
//  1. Parse the request (form values)
//  2. Call the service
//  3. Render a page, redirect, or map the error to a status
//
// Business rules (validation, uniqueness, password checks) live in
// internal/service, not here.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/sakif/gatehouse/internal/auth"
	"github.com/sakif/gatehouse/internal/model"
)

// pages lists every page template. Each is parsed together with base.html,
// which defines the layout and calls {{template "content" .}}.
var pages = []string{"home", "register", "login", "dashboard", "error"}

// PageData is what every template receives.
type PageData struct {
	Title   string
	User    *model.User
	Flashes []Flash

	// Form echoes submitted values back into inputs. Passwords are never
	// echoed.
	Form   map[string]string
	Errors map[string][]string

	// Message is the body text of the error page.
	Message string
}

// Renderer holds the parsed page templates.
//
// Templates are parsed once at startup; a page that fails to parse stops
// the server from starting rather than failing on first request.
type Renderer struct {
	pages   map[string]*template.Template
	flashes *FlashStore
	logger  *slog.Logger
}

// NewRenderer parses base.html plus one file per page from fsys.
func NewRenderer(fsys fs.FS, flashes *FlashStore, logger *slog.Logger) (*Renderer, error) {
	parsed := make(map[string]*template.Template, len(pages))
	for _, name := range pages {
		tmpl, err := template.ParseFS(fsys, "base.html", name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		parsed[name] = tmpl
	}

	return &Renderer{pages: parsed, flashes: flashes, logger: logger}, nil
}

// Page renders the named page with status.
//
// The current user (if any) and pending flashes are filled in here so
// handlers don't each have to. Output is buffered: a template error turns
// into a clean 500 instead of a half-written page.
func (rd *Renderer) Page(w http.ResponseWriter, r *http.Request, status int, page string, data PageData) {
	tmpl, ok := rd.pages[page]
	if !ok {
		rd.logger.Error("render: unknown page", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if data.User == nil {
		if u, ok := auth.UserFromContext(r.Context()); ok {
			data.User = u
		}
	}
	data.Flashes = append(rd.flashes.Pop(w, r), data.Flashes...)

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		rd.logger.Error("render: executing template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		rd.logger.Debug("render: writing response", slog.String("error", err.Error()))
	}
}

// Error renders the error page for status. The message is generic; the
// cause belongs in the log, not in the browser.
func (rd *Renderer) Error(w http.ResponseWriter, r *http.Request, status int) {
	msg := "Something went wrong on our side. Please try again."
	switch status {
	case http.StatusNotFound:
		msg = "The page you asked for doesn't exist."
	case http.StatusMethodNotAllowed:
		msg = "That action isn't supported here."
	case http.StatusBadRequest:
		msg = "The request couldn't be understood."
	}

	rd.Page(w, r, status, "error", PageData{
		Title:   http.StatusText(status),
		Message: msg,
	})
}

// NotFound and MethodNotAllowed plug into chi's router.
func (rd *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	rd.Error(w, r, http.StatusNotFound)
}

func (rd *Renderer) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	rd.Error(w, r, http.StatusMethodNotAllowed)
}
