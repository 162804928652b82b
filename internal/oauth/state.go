package oauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultStateTTL bounds how long a user may take on the consent screen.
	DefaultStateTTL = 10 * time.Minute

	stateIssuer   = "secretgate"
	stateAudience = "oauth-state"
	nonceBytes    = 16
)

// ErrInvalidState is returned when a state token is malformed, expired,
// tampered with, or bound to a different browser.
var ErrInvalidState = errors.New("invalid oauth state")

// StateSigner issues and verifies the OAuth state parameter as an HS256 JWT.
type StateSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewStateSigner creates a signer. A non-positive ttl uses DefaultStateTTL.
func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateSigner{key: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the state token lifetime.
func (s *StateSigner) TTL() time.Duration {
	return s.ttl
}

// NewNonce returns a random URL-safe nonce.
func NewNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating oauth nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Issue signs a state token bound to nonce.
func (s *StateSigner) Issue(nonce string) (string, error) {
	if nonce == "" {
		return "", fmt.Errorf("%w: empty nonce", ErrInvalidState)
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    stateIssuer,
		Audience:  jwt.ClaimStrings{stateAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        nonce,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("signing oauth state: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature and expiry, and that it carries nonce.
func (s *StateSigner) Verify(token, nonce string) error {
	if token == "" || nonce == "" {
		return ErrInvalidState
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	if subtle.ConstantTimeCompare([]byte(claims.ID), []byte(nonce)) != 1 {
		return fmt.Errorf("%w: nonce mismatch", ErrInvalidState)
	}
	return nil
}
