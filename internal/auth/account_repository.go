package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/secretgate/internal/infrastructure/database"
)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// identifierIndex is the unique index that makes identifiers single-use.
const identifierIndex = "idx_accounts_identifier"

// AccountRepository is the datastore contract the Verifier depends on.
//
// FindByIdentifier returns ErrNotFound when no row matches. Insert returns
// ErrDuplicateIdentifier when the identifier is already taken, including when
// a concurrent insert won the race. Every other failure wraps ErrStoreUnavailable.
type AccountRepository interface {
	FindByIdentifier(ctx context.Context, identifier string) (*Account, error)
	Insert(ctx context.Context, account *Account) error
}

// SQLAccountRepository implements AccountRepository on SQLite or PostgreSQL.
type SQLAccountRepository struct {
	db *database.DB
}

// NewAccountRepository creates a SQL-backed account repository.
func NewAccountRepository(db *database.DB) *SQLAccountRepository {
	return &SQLAccountRepository{db: db}
}

// Insert stores a new account. The ID and CreatedAt are generated if empty.
// No existence check is made first: the unique index decides. Any other
// constraint failure, an ID collision included, is a store error.
func (r *SQLAccountRepository) Insert(ctx context.Context, account *Account) error {
	if account.ID == "" {
		account.ID = "acc-" + uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, identifier, auth_method, credential_hash, provider, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID, account.Identifier, string(account.Method),
		nullString(account.CredentialHash), nullString(account.Provider),
		formatTime(account.CreatedAt),
	)
	if err != nil {
		if database.IsUniqueViolation(err, identifierIndex) {
			return ErrDuplicateIdentifier
		}
		return fmt.Errorf("%w: inserting account: %w", ErrStoreUnavailable, err)
	}

	return nil
}

// FindByIdentifier retrieves an account by exact identifier match.
func (r *SQLAccountRepository) FindByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, identifier, auth_method, credential_hash, provider, created_at
		 FROM accounts WHERE identifier = ?`, identifier)
	return scanAccountFrom(row)
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

func scanAccountFrom(s scanner) (*Account, error) {
	var a Account
	var method, createdAt string
	var credentialHash, provider sql.NullString

	err := s.Scan(&a.ID, &a.Identifier, &method, &credentialHash, &provider, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: reading account: %w", ErrStoreUnavailable, err)
	}

	a.Method = AuthMethod(method)
	if credentialHash.Valid {
		a.CredentialHash = credentialHash.String
	}
	if provider.Valid {
		a.Provider = provider.String
	}
	a.CreatedAt = parseTime(createdAt)

	return &a, nil
}

// Helper functions.

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s) //nolint:errcheck // format is controlled
	}
	return t
}
