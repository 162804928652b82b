package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// sessionTokenBytes is the entropy of a raw session token.
const sessionTokenBytes = 32

// SessionManager issues and resolves server-side sessions.
// The raw token goes to the client; only its hash is stored.
type SessionManager struct {
	repo         SessionRepository
	ttl          time.Duration
	queryTimeout time.Duration
	now          func() time.Time
}

// NewSessionManager creates a SessionManager whose sessions live for ttl.
func NewSessionManager(repo SessionRepository, ttl, queryTimeout time.Duration) *SessionManager {
	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}
	return &SessionManager{
		repo:         repo,
		ttl:          ttl,
		queryTimeout: queryTimeout,
		now:          time.Now,
	}
}

// TTL returns the configured session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Create starts a session for account and returns the raw token to hand to the client.
func (m *SessionManager) Create(ctx context.Context, account *Account) (string, *Session, error) {
	raw, err := generateToken()
	if err != nil {
		return "", nil, err
	}

	now := m.now().UTC()
	session := &Session{
		TokenHash:  HashToken(raw),
		AccountID:  account.ID,
		Identifier: account.Identifier,
		ExpiresAt:  now.Add(m.ttl),
		CreatedAt:  now,
	}

	ctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	defer cancel()

	if err := m.repo.Create(ctx, session); err != nil {
		return "", nil, classifySessionError(err)
	}
	return raw, session, nil
}

// Resolve returns the live session for a raw token.
// Returns ErrSessionNotFound for unknown tokens and ErrSessionExpired for stale ones.
func (m *SessionManager) Resolve(ctx context.Context, raw string) (*Session, error) {
	if raw == "" {
		return nil, ErrSessionNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	defer cancel()

	session, err := m.repo.GetByTokenHash(ctx, HashToken(raw))
	if err != nil {
		return nil, classifySessionError(err)
	}
	if session.Expired(m.now()) {
		return nil, ErrSessionExpired
	}
	return session, nil
}

// Destroy ends the session for a raw token. Unknown tokens are ignored.
func (m *SessionManager) Destroy(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	defer cancel()

	if err := m.repo.DeleteByTokenHash(ctx, HashToken(raw)); err != nil {
		return classifySessionError(err)
	}
	return nil
}

// PurgeExpired deletes every expired session and returns how many were removed.
func (m *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	defer cancel()

	n, err := m.repo.DeleteExpired(ctx, m.now().UTC())
	if err != nil {
		return 0, classifySessionError(err)
	}
	return n, nil
}

// RunCleanup purges expired sessions every interval until ctx is cancelled.
// onPurge, if non-nil, receives the count of every pass that removed something.
func (m *SessionManager) RunCleanup(ctx context.Context, interval time.Duration, logger *slog.Logger, onPurge func(removed int64)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("session cleanup failed", "error", err)
				continue
			}
			if n == 0 {
				continue
			}
			logger.Debug("purged expired sessions", "count", n)
			if onPurge != nil {
				onPurge(n)
			}
		}
	}
}

func classifySessionError(err error) error {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrStoreUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}

func generateToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
