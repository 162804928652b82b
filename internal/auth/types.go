package auth

import (
	"errors"
	"strings"
	"time"
)

// AuthMethod is how an account proves its identity.
type AuthMethod string

const (
	// MethodLocal accounts hold a salted secret hash.
	MethodLocal AuthMethod = "local"

	// MethodFederated accounts were created from an external identity provider
	// and have no local secret.
	MethodFederated AuthMethod = "federated"
)

// maxIdentifierLength bounds identifiers to the practical maximum email length.
const maxIdentifierLength = 254

// Account is a registered identity. It is created exactly once and never
// updated; uniqueness of Identifier is enforced by the datastore.
type Account struct {
	ID         string     `json:"id"`
	Identifier string     `json:"identifier"`
	Method     AuthMethod `json:"method"`
	// CredentialHash is set for MethodLocal only.
	CredentialHash string `json:"-"`
	// Provider is set for MethodFederated only.
	Provider  string    `json:"provider,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HasLocalCredential reports whether a secret can be verified against this account.
func (a *Account) HasLocalCredential() bool {
	return a.Method == MethodLocal && a.CredentialHash != ""
}

// Session is a server-side login bound to one account.
type Session struct {
	ID         string    `json:"id"`
	TokenHash  string    `json:"-"` // never serialised
	AccountID  string    `json:"account_id"`
	Identifier string    `json:"identifier"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// NormalizeIdentifier trims surrounding whitespace and lower-cases the identifier
// so lookups and the unique index agree on one spelling per email address.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// Sentinel errors for credential verification.
var (
	ErrNotFound            = errors.New("user doesn't exist")
	ErrBadCredential       = errors.New("wrong password")
	ErrDuplicateIdentifier = errors.New("user already exists")
	ErrStoreUnavailable    = errors.New("account store unavailable")
	ErrInvalidIdentifier   = errors.New("invalid identifier")
	ErrInvalidSecret       = errors.New("invalid secret")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExpired      = errors.New("session has expired")
)

// Outcome labels used in logs, audit entries and metrics.
const (
	OutcomeSuccess          = "success"
	OutcomeNotFound         = "not_found"
	OutcomeBadCredential    = "bad_credential"
	OutcomeDuplicate        = "duplicate"
	OutcomeStoreUnavailable = "store_unavailable"
	OutcomeInvalidInput     = "invalid_input"
	OutcomeError            = "error"
)

// Kind maps an error returned by this package to its outcome label.
// A nil error is OutcomeSuccess.
func Kind(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrStoreUnavailable):
		return OutcomeStoreUnavailable
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrBadCredential):
		return OutcomeBadCredential
	case errors.Is(err, ErrDuplicateIdentifier):
		return OutcomeDuplicate
	case errors.Is(err, ErrInvalidIdentifier), errors.Is(err, ErrInvalidSecret):
		return OutcomeInvalidInput
	default:
		return OutcomeError
	}
}
