package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/secretgate/internal/assets"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.middlewares()...)

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	// No session lookup for static files and health probes.
	r.Handle("/public/*", http.StripPrefix("/public", assets.Handler(s.assetsDir)))
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Get("/", s.handleHome)

		r.Get("/login", s.handleLoginPage)
		r.Post("/login", s.handleLogin)

		r.Get("/register", s.handleRegisterPage)
		r.Post("/register", s.handleRegister)

		r.Get("/secrets", s.handleSecrets)
		r.Get("/secrets/activity", s.handleActivity)

		r.Get("/logout", s.handleLogout)
		r.Post("/logout", s.handleLogout)

		r.Get("/auth/google", s.handleGoogleStart)
		r.Get("/auth/google/secrets", s.handleGoogleCallback)
	})

	return r
}
