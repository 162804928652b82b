package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Supported hashing algorithms.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// DefaultBcryptCost is the work factor for new bcrypt hashes.
const DefaultBcryptCost = 10

// ErrUnknownHashFormat is returned when a stored digest matches no supported algorithm.
var ErrUnknownHashFormat = errors.New("unknown password hash format")

// Hasher produces and checks salted one-way digests of secrets.
// Verify must compare in constant time and return (false, nil) on mismatch;
// a non-nil error means the digest itself could not be used.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) (bool, error)
}

// BcryptHasher hashes with bcrypt at Cost.
type BcryptHasher struct {
	Cost int
}

// Hash returns a bcrypt digest with an embedded random salt.
func (h BcryptHasher) Hash(secret string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: %w", ErrInvalidSecret, err)
		}
		return "", fmt.Errorf("hashing secret: %w", err)
	}
	return string(digest), nil
}

// Verify checks secret against a bcrypt digest.
func (h BcryptHasher) Verify(secret, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("verifying bcrypt digest: %w", err)
	}
}

// MultiHasher hashes new secrets with Primary and verifies digests of any
// supported algorithm, so switching algorithms keeps existing accounts valid.
type MultiHasher struct {
	Primary Hasher
	bcrypt  BcryptHasher
	argon   Argon2Hasher
}

// NewHasher returns a MultiHasher whose new digests use algorithm.
func NewHasher(algorithm string, bcryptCost int) (*MultiHasher, error) {
	m := &MultiHasher{bcrypt: BcryptHasher{Cost: bcryptCost}}
	switch algorithm {
	case "", AlgorithmBcrypt:
		m.Primary = m.bcrypt
	case AlgorithmArgon2id:
		m.Primary = m.argon
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", algorithm)
	}
	return m, nil
}

// Hash delegates to the primary algorithm.
func (m *MultiHasher) Hash(secret string) (string, error) {
	return m.Primary.Hash(secret)
}

// Verify picks the algorithm from the digest prefix.
func (m *MultiHasher) Verify(secret, digest string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return m.argon.Verify(secret, digest)
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		return m.bcrypt.Verify(secret, digest)
	default:
		return false, ErrUnknownHashFormat
	}
}
