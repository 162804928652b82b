package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/secretgate/internal/auth"
)

// Visitor-facing messages.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgUserNotFound       = "user doesn't exist"
	msgWrongPassword      = "wrong password"
	msgUserExists         = "User already exists"
	msgRegistrationFailed = "Registration failed"
	msgGoogleFailed       = "Google sign-in failed, please try again"
	msgGoogleCancelled    = "Google sign-in was cancelled"
	msgGoogleUnverified   = "Your Google email address is not verified"
	msgServiceUnavailable = "We can't reach our account store right now. Please try again in a moment."
)

// loginFailureMessage maps a rejected login to the text shown on /login.
// Unless security.reveal_login_failure_reason is set, an unknown account and a
// wrong password look the same to the visitor.
func (s *Server) loginFailureMessage(err error) string {
	if !s.cfg.Security.RevealLoginFailureReason {
		return msgInvalidCredentials
	}
	switch {
	case errors.Is(err, auth.ErrNotFound):
		return msgUserNotFound
	case errors.Is(err, auth.ErrBadCredential):
		return msgWrongPassword
	default:
		return msgInvalidCredentials
	}
}

// renderError renders the error page with the given status.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, title, message string) {
	s.render(w, r, status, pageError, pageData{Title: title, Message: message})
}

// renderUnavailable renders the retry-later page used whenever the account
// store cannot be reached.
func (s *Server) renderUnavailable(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "5")
	s.renderError(w, r, http.StatusServiceUnavailable, "Service unavailable", msgServiceUnavailable)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound, "Page not found", "The page you asked for does not exist.")
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusMethodNotAllowed, "Method not allowed", "That action is not supported here.")
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}
