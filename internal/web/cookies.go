package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const (
	flashCookieName = "secretgate_flash"
	nonceCookieName = "secretgate_oauth_nonce"
	nonceCookiePath = "/auth/google"
)

// Notice kinds.
const (
	kindError = "error"
	kindInfo  = "info"
)

// Notice is a one-time message shown on the next rendered page.
type Notice struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) readSessionCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(s.cfg.Session.CookieName)
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	return value, value != ""
}

func (s *Server) setSessionCookie(w http.ResponseWriter, raw string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    raw,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// setFlash stores a notice for the next page render.
func (s *Server) setFlash(w http.ResponseWriter, n Notice) {
	payload, err := json.Marshal(n)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the pending notice, if any.
func (s *Server) popFlash(w http.ResponseWriter, r *http.Request) *Notice {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(cookie.Value))
	if err != nil {
		return nil
	}
	var n Notice
	if err := json.Unmarshal(decoded, &n); err != nil || strings.TrimSpace(n.Message) == "" {
		return nil
	}
	if n.Kind != kindError && n.Kind != kindInfo {
		n.Kind = kindInfo
	}
	return &n
}

func (s *Server) setNonceCookie(w http.ResponseWriter, nonce string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     nonceCookieName,
		Value:    nonce,
		Path:     nonceCookiePath,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// popNonce returns the OAuth nonce cookie and clears it.
func (s *Server) popNonce(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(nonceCookieName)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     nonceCookieName,
		Value:    "",
		Path:     nonceCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return cookie.Value
}
