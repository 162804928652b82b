package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/secretgate/internal/auth"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	sessionKey
)

const (
	// defaultMaxBodyBytes caps form posts when http.max_body_bytes is unset.
	defaultMaxBodyBytes = 1 << 20

	maxRequestIDLength = 64
)

// currentSession is what sessionMiddleware stores for a signed-in visitor.
type currentSession struct {
	raw     string
	session *auth.Session
}

// securityHeaders are set on every response.
var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "same-origin"},
}

// middlewares returns the stack applied to every route, outermost first.
func (s *Server) middlewares() []func(http.Handler) http.Handler {
	limit := s.cfg.HTTP.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}

	stack := []func(http.Handler) http.Handler{
		s.requestIDMiddleware,
		s.loggingMiddleware,
		s.recoveryMiddleware,
	}
	for _, h := range securityHeaders {
		stack = append(stack, middleware.SetHeader(h[0], h[1]))
	}
	return append(stack, middleware.RequestSize(limit))
}

// requestIDMiddleware echoes the client's X-Request-ID, or mints one when it
// is missing or unreasonably long.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > maxRequestIDLength {
			id = newRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFrom(r.Context()),
		)
	})
}

// recoveryMiddleware turns a handler panic into the 500 page.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
				panic(rec)
			}
			s.logger.Error("panic recovered in HTTP handler",
				"panic", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", requestIDFrom(r.Context()),
			)
			s.renderError(w, r, http.StatusInternalServerError,
				"Something went wrong", "An unexpected error occurred. Please try again.")
		}()
		next.ServeHTTP(w, r)
	})
}

// sessionMiddleware resolves the session cookie into the request context.
//
// Unknown and expired tokens clear the cookie and continue anonymously.
// If the store is unreachable the visitor's login state is unknown, so the
// retry-later page is rendered instead.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := s.readSessionCookie(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		session, err := s.sessions.Resolve(r.Context(), raw)
		switch {
		case err == nil:
			ctx := context.WithValue(r.Context(), sessionKey, &currentSession{raw: raw, session: session})
			next.ServeHTTP(w, r.WithContext(ctx))
		case errors.Is(err, auth.ErrSessionNotFound), errors.Is(err, auth.ErrSessionExpired):
			s.clearSessionCookie(w)
			next.ServeHTTP(w, r)
		default:
			s.logger.Warn("session lookup failed", "error", err, "request_id", requestIDFrom(r.Context()))
			s.renderUnavailable(w, r)
		}
	})
}

// sessionFrom returns the signed-in session, or nil for anonymous visitors.
func sessionFrom(ctx context.Context) *currentSession {
	cs, _ := ctx.Value(sessionKey).(*currentSession)
	return cs
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func newRequestID() string {
	var b [8]byte
	_, _ = rand.Read(b[:]) //nolint:errcheck // crypto/rand.Read does not fail on supported platforms
	return hex.EncodeToString(b[:])
}
