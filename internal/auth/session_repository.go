package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/secretgate/internal/infrastructure/database"
)

// SessionRepository defines the interface for session persistence.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SQLSessionRepository implements SessionRepository on SQLite or PostgreSQL.
type SQLSessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a SQL-backed session repository.
func NewSessionRepository(db *database.DB) *SQLSessionRepository {
	return &SQLSessionRepository{db: db}
}

// HashToken computes the SHA-256 hash of a raw session token for storage.
// Raw tokens are never stored, only their hashes.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// Create inserts a new session. The ID is generated if empty.
func (r *SQLSessionRepository) Create(ctx context.Context, session *Session) error {
	if session.ID == "" {
		session.ID = "ses-" + uuid.NewString()[:16]
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, token_hash, account_id, identifier, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.TokenHash, session.AccountID, session.Identifier,
		formatTime(session.ExpiresAt), formatTime(session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: creating session: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// GetByTokenHash retrieves a session by the SHA-256 hash of its token.
// Expiry is not checked here.
func (r *SQLSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error) {
	var s Session
	var expiresAt, createdAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, token_hash, account_id, identifier, expires_at, created_at
		 FROM sessions WHERE token_hash = ?`, tokenHash,
	).Scan(&s.ID, &s.TokenHash, &s.AccountID, &s.Identifier, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: getting session: %w", ErrStoreUnavailable, err)
	}

	s.ExpiresAt = parseTime(expiresAt)
	s.CreatedAt = parseTime(createdAt)
	return &s, nil
}

// DeleteByTokenHash removes a session. Deleting a missing session is not an error.
func (r *SQLSessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE token_hash = ?", tokenHash); err != nil {
		return fmt.Errorf("%w: deleting session: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteExpired removes sessions that expired at or before now.
// Returns the number of deleted rows.
func (r *SQLSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at <= ?", formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("%w: deleting expired sessions: %w", ErrStoreUnavailable, err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // supported by both drivers
	return count, nil
}
