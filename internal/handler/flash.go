package handler

import (
	"crypto/sha256"
	"log/slog"
	"net/http"

	"github.com/gorilla/securecookie"
)

const flashCookieName = "gatehouse_flash"

// Flash kinds map to CSS classes (flash-success, flash-error).
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is a one-time notice shown on the next rendered page.
type Flash struct {
	Kind    string `json:"k"`
	Message string `json:"m"`
}

// FlashStore keeps pending flashes in a signed cookie so a message set
// before a redirect survives to the page after it.
//
// Signing stops a third party from planting messages in the user's
// browser; the content itself is not secret, so there is no block key.
type FlashStore struct {
	codec  *securecookie.SecureCookie
	secure bool
	logger *slog.Logger
}

// NewFlashStore derives the cookie signing key from secret. The key is
// domain-separated from the session token key.
func NewFlashStore(secret string, secure bool, logger *slog.Logger) *FlashStore {
	hashKey := sha256.Sum256([]byte("gatehouse/flash\x00" + secret))

	codec := securecookie.New(hashKey[:], nil)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(300)

	return &FlashStore{codec: codec, secure: secure, logger: logger}
}

// Add queues f behind any flashes already pending on r.
func (s *FlashStore) Add(w http.ResponseWriter, r *http.Request, f Flash) {
	pending := s.read(r)
	pending = append(pending, f)

	encoded, err := s.codec.Encode(flashCookieName, pending)
	if err != nil {
		s.logger.Error("flash: encoding cookie", slog.String("error", err.Error()))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Pop returns the pending flashes and clears the cookie so each message is
// rendered once.
func (s *FlashStore) Pop(w http.ResponseWriter, r *http.Request) []Flash {
	pending := s.read(r)
	if _, err := r.Cookie(flashCookieName); err == nil {
		http.SetCookie(w, &http.Cookie{
			Name:     flashCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return pending
}

// read decodes the flash cookie. A missing, expired or tampered cookie
// reads as no flashes.
func (s *FlashStore) read(r *http.Request) []Flash {
	c, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}

	var pending []Flash
	if err := s.codec.Decode(flashCookieName, c.Value, &pending); err != nil {
		s.logger.Debug("flash: discarding unreadable cookie", slog.String("error", err.Error()))
		return nil
	}
	return pending
}
