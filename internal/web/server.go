// Package web serves secretgate's login site: the home, login, register and
// secrets pages, Google sign-in, logout and a JSON health endpoint.
//
// The server follows the same lifecycle pattern as the infrastructure
// components:
//
//	server, err := web.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nerrad567/secretgate/internal/audit"
	"github.com/nerrad567/secretgate/internal/auth"
	"github.com/nerrad567/secretgate/internal/events"
	"github.com/nerrad567/secretgate/internal/infrastructure/config"
	"github.com/nerrad567/secretgate/internal/infrastructure/logging"
	"github.com/nerrad567/secretgate/internal/oauth"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by every dependency reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// FederatedProvider runs an OAuth2 authorization-code flow.
type FederatedProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth.Identity, error)
}

// AuditLister reads back the audit trail for /secrets/activity.
type AuditLister interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// Deps holds the dependencies required by the web server.
type Deps struct {
	Config   *config.Config
	Logger   *logging.Logger
	Verifier *auth.Verifier
	Sessions *auth.SessionManager
	Events   *events.Fanout

	// Google is nil when federated login is disabled.
	Google FederatedProvider
	State  *oauth.StateSigner

	// Audit is optional; /secrets/activity returns 404 without it.
	Audit AuditLister

	// Database is required; Checks lists optional components for /health.
	Database HealthChecker
	Checks   map[string]HealthChecker

	// AssetsDir serves /public from disk instead of the embedded copy.
	AssetsDir string
	Version   string
}

// Server is the HTTP server for the login site.
type Server struct {
	cfg       *config.Config
	logger    *logging.Logger
	verifier  *auth.Verifier
	sessions  *auth.SessionManager
	events    *events.Fanout
	google    FederatedProvider
	state     *oauth.StateSigner
	audit     AuditLister
	database  HealthChecker
	checks    map[string]HealthChecker
	assetsDir string
	version   string

	pages    map[string]*template.Template
	validate *validator.Validate
	server   *http.Server
	listener net.Listener
}

// New creates a web server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("config is required")
	case deps.Logger == nil:
		return nil, errors.New("logger is required")
	case deps.Verifier == nil:
		return nil, errors.New("verifier is required")
	case deps.Sessions == nil:
		return nil, errors.New("session manager is required")
	case deps.Database == nil:
		return nil, errors.New("database health checker is required")
	case deps.Google != nil && deps.State == nil:
		return nil, errors.New("state signer is required when federated login is enabled")
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		verifier:  deps.Verifier,
		sessions:  deps.Sessions,
		events:    deps.Events,
		google:    deps.Google,
		state:     deps.State,
		audit:     deps.Audit,
		database:  deps.Database,
		checks:    deps.Checks,
		assetsDir: deps.AssetsDir,
		version:   deps.Version,
		pages:     pages,
		validate:  newValidator(),
	}, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The listener is bound before Start returns, so a port conflict is reported
// to the caller.
func (s *Server) Start(_ context.Context) error {
	addr := net.JoinHostPort(s.cfg.HTTP.Host, strconv.Itoa(s.cfg.HTTP.Port))

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	go func() {
		var err error
		if s.cfg.HTTP.TLS.Enabled {
			s.logger.Info("web server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.HTTP.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.HTTP.TLS.CertFile, s.cfg.HTTP.TLS.KeyFile)
		} else {
			s.logger.Info("web server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("web server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("web server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down web server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("web health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return errors.New("web server not started")
	}
	return nil
}
