package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/secretgate/internal/auth"
	"github.com/nerrad567/secretgate/internal/events"
	"github.com/nerrad567/secretgate/internal/oauth"
)

// Outcomes specific to the federated flow.
const (
	outcomeCancelled    = "cancelled"
	outcomeInvalidState = "invalid_state"
	outcomeUnverified   = "email_unverified"
)

// healthCheckTimeout bounds the whole /health probe.
const healthCheckTimeout = 2 * time.Second

// =============================================================================
// Pages
// =============================================================================

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if sessionFrom(r.Context()) != nil {
		http.Redirect(w, r, "/secrets", http.StatusFound)
		return
	}
	s.render(w, r, http.StatusOK, pageHome, pageData{Title: "Home"})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if sessionFrom(r.Context()) != nil {
		http.Redirect(w, r, "/secrets", http.StatusFound)
		return
	}
	s.render(w, r, http.StatusOK, pageLogin, pageData{
		Title:  "Login",
		Notice: s.popFlash(w, r),
	})
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if sessionFrom(r.Context()) != nil {
		http.Redirect(w, r, "/secrets", http.StatusFound)
		return
	}
	s.render(w, r, http.StatusOK, pageRegister, pageData{
		Title:  "Register",
		Notice: s.popFlash(w, r),
	})
}

func (s *Server) handleSecrets(w http.ResponseWriter, r *http.Request) {
	cs := sessionFrom(r.Context())
	if cs == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	s.render(w, r, http.StatusOK, pageSecrets, pageData{
		Title:      "Secrets",
		Identifier: cs.session.Identifier,
	})
}

// =============================================================================
// Local credentials
// =============================================================================

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseCredentials(r)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			s.renderError(w, r, http.StatusRequestEntityTooLarge, "Request too large", "The submitted form is too large.")
			return
		}
		s.emit(r, events.TypeLogin, form.Username, string(auth.MethodLocal), "", auth.OutcomeInvalidInput)
		s.setFlash(w, Notice{Kind: kindError, Message: formErrorMessage(err)})
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	account, err := s.verifier.Authenticate(r.Context(), form.Username, form.Password)
	s.emit(r, events.TypeLogin, auth.NormalizeIdentifier(form.Username), string(auth.MethodLocal), "", auth.Kind(err))
	if err != nil {
		if errors.Is(err, auth.ErrStoreUnavailable) {
			s.logger.Error("login failed: account store unavailable",
				"error", err,
				"request_id", requestIDFrom(r.Context()),
			)
			s.renderUnavailable(w, r)
			return
		}
		s.logger.Info("login rejected",
			"outcome", auth.Kind(err),
			"request_id", requestIDFrom(r.Context()),
		)
		s.setFlash(w, Notice{Kind: kindError, Message: s.loginFailureMessage(err)})
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if !s.startSession(w, r, account) {
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusSeeOther)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseCredentials(r)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			s.renderError(w, r, http.StatusRequestEntityTooLarge, "Request too large", "The submitted form is too large.")
			return
		}
		s.emit(r, events.TypeRegister, form.Username, string(auth.MethodLocal), "", auth.OutcomeInvalidInput)
		s.renderRegisterError(w, r, http.StatusBadRequest, form.Username, formErrorMessage(err))
		return
	}

	account, err := s.verifier.Register(r.Context(), form.Username, form.Password)
	s.emit(r, events.TypeRegister, auth.NormalizeIdentifier(form.Username), string(auth.MethodLocal), "", auth.Kind(err))
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrDuplicateIdentifier):
		s.renderRegisterError(w, r, http.StatusConflict, form.Username, msgUserExists)
		return
	case errors.Is(err, auth.ErrStoreUnavailable):
		s.logger.Error("registration failed: account store unavailable",
			"error", err,
			"request_id", requestIDFrom(r.Context()),
		)
		s.renderUnavailable(w, r)
		return
	case errors.Is(err, auth.ErrInvalidIdentifier):
		s.renderRegisterError(w, r, http.StatusBadRequest, form.Username, "Please enter a valid email address")
		return
	case errors.Is(err, auth.ErrInvalidSecret):
		s.renderRegisterError(w, r, http.StatusBadRequest, form.Username, "Password is too long")
		return
	default:
		s.logger.Error("registration failed",
			"error", err,
			"request_id", requestIDFrom(r.Context()),
		)
		s.renderRegisterError(w, r, http.StatusInternalServerError, form.Username, msgRegistrationFailed)
		return
	}

	if !s.startSession(w, r, account) {
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusSeeOther)
}

func (s *Server) renderRegisterError(w http.ResponseWriter, r *http.Request, status int, identifier, message string) {
	s.render(w, r, status, pageRegister, pageData{
		Title:      "Register",
		Error:      message,
		Identifier: identifier,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cs := sessionFrom(r.Context()); cs != nil {
		err := s.sessions.Destroy(r.Context(), cs.raw)
		if err != nil {
			s.logger.Warn("destroying session failed",
				"error", err,
				"request_id", requestIDFrom(r.Context()),
			)
		}
		s.emit(r, events.TypeLogout, cs.session.Identifier, "", "", auth.Kind(err))
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

// startSession creates a server-side session for account and sets the cookie.
// Any session the visitor already had is ended first. On failure it renders
// the error page and returns false.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, account *auth.Account) bool {
	if cs := sessionFrom(r.Context()); cs != nil {
		if err := s.sessions.Destroy(r.Context(), cs.raw); err != nil {
			s.logger.Warn("destroying previous session failed", "error", err)
		}
	}

	raw, session, err := s.sessions.Create(r.Context(), account)
	if err != nil {
		s.logger.Error("creating session failed",
			"error", err,
			"request_id", requestIDFrom(r.Context()),
		)
		if errors.Is(err, auth.ErrStoreUnavailable) {
			s.renderUnavailable(w, r)
		} else {
			s.renderError(w, r, http.StatusInternalServerError, "Something went wrong", "We could not sign you in. Please try again.")
		}
		return false
	}

	s.setSessionCookie(w, raw, session.ExpiresAt)
	return true
}

// =============================================================================
// Google sign-in
// =============================================================================

func (s *Server) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		s.handleNotFound(w, r)
		return
	}

	nonce, err := oauth.NewNonce()
	if err == nil {
		var state string
		state, err = s.state.Issue(nonce)
		if err == nil {
			s.setNonceCookie(w, nonce, s.state.TTL())
			http.Redirect(w, r, s.google.AuthCodeURL(state), http.StatusFound)
			return
		}
	}

	s.logger.Error("starting google sign-in failed", "error", err)
	s.setFlash(w, Notice{Kind: kindError, Message: msgGoogleFailed})
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		s.handleNotFound(w, r)
		return
	}

	provider := s.google.Name()
	method := string(auth.MethodFederated)
	nonce := s.popNonce(w, r)
	q := r.URL.Query()

	fail := func(identifier, outcome, message string) {
		s.emit(r, events.TypeFederatedLogin, identifier, method, provider, outcome)
		s.setFlash(w, Notice{Kind: kindError, Message: message})
		http.Redirect(w, r, "/login", http.StatusFound)
	}

	if q.Get("error") != "" {
		fail("", outcomeCancelled, msgGoogleCancelled)
		return
	}

	if err := s.state.Verify(q.Get("state"), nonce); err != nil {
		s.logger.Warn("google callback rejected", "error", err, "request_id", requestIDFrom(r.Context()))
		fail("", outcomeInvalidState, msgGoogleFailed)
		return
	}

	identity, err := s.google.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		if errors.Is(err, oauth.ErrEmailNotVerified) {
			email := ""
			if identity != nil {
				email = auth.NormalizeIdentifier(identity.Email)
			}
			fail(email, outcomeUnverified, msgGoogleUnverified)
			return
		}
		s.logger.Warn("google code exchange failed", "error", err, "request_id", requestIDFrom(r.Context()))
		fail("", auth.OutcomeError, msgGoogleFailed)
		return
	}

	account, created, err := s.verifier.LoginFederated(r.Context(), identity.Provider, identity.Email)
	if err != nil {
		if errors.Is(err, auth.ErrStoreUnavailable) {
			s.emit(r, events.TypeFederatedLogin, auth.NormalizeIdentifier(identity.Email), method, provider, auth.Kind(err))
			s.logger.Error("federated login failed: account store unavailable",
				"error", err,
				"request_id", requestIDFrom(r.Context()),
			)
			s.renderUnavailable(w, r)
			return
		}
		fail(auth.NormalizeIdentifier(identity.Email), auth.Kind(err), msgGoogleFailed)
		return
	}

	if created {
		s.emit(r, events.TypeRegister, account.Identifier, method, provider, auth.OutcomeSuccess)
	}
	s.emit(r, events.TypeFederatedLogin, account.Identifier, method, provider, auth.OutcomeSuccess)

	if !s.startSession(w, r, account) {
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

// =============================================================================
// Health
// =============================================================================

type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// handleHealth reports "healthy", "degraded" when an optional component
// fails, or "unhealthy" with 503 when the database is down.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{
		Status:  "healthy",
		Version: s.version,
		Checks:  map[string]string{},
	}
	status := http.StatusOK

	if err := s.database.HealthCheck(ctx); err != nil {
		s.logger.Warn("database health check failed", "error", err)
		resp.Checks["database"] = "error"
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	} else {
		resp.Checks["database"] = "ok"
	}

	for name, c := range s.checks {
		if err := c.HealthCheck(ctx); err != nil {
			resp.Checks[name] = "error"
			if resp.Status == "healthy" {
				resp.Status = "degraded"
			}
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, status, resp)
}

// =============================================================================
// Events
// =============================================================================

func (s *Server) emit(r *http.Request, eventType, identifier, method, provider, outcome string) {
	s.events.Emit(r.Context(), events.Event{
		Type:       eventType,
		Identifier: identifier,
		Method:     method,
		Provider:   provider,
		Outcome:    outcome,
		Source:     clientIP(r),
		RequestID:  requestIDFrom(r.Context()),
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
