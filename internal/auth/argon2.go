package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2SaltLen = 16

// Argon2Params tunes Argon2id. The zero value means DefaultArgon2Params.
type Argon2Params struct {
	Time      uint32 // passes over memory
	MemoryKiB uint32
	Threads   uint8
	KeyLen    uint32
}

// DefaultArgon2Params follows the OWASP baseline: 64 MiB, 3 passes, 1 lane.
var DefaultArgon2Params = Argon2Params{Time: 3, MemoryKiB: 64 * 1024, Threads: 1, KeyLen: 32}

var errMalformedPHC = errors.New("malformed argon2id digest")

// Argon2Hasher hashes with Argon2id and stores PHC strings:
//
//	$argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>
//
// Verify uses the parameters recorded in the digest, so raising Params does
// not invalidate existing digests.
type Argon2Hasher struct {
	Params Argon2Params
}

func (h Argon2Hasher) params() Argon2Params {
	if h.Params == (Argon2Params{}) {
		return DefaultArgon2Params
	}
	return h.Params
}

// Hash returns a PHC string with a fresh random salt.
func (h Argon2Hasher) Hash(secret string) (string, error) {
	p := h.params()
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	key := argon2.IDKey([]byte(secret), salt, p.Time, p.MemoryKiB, p.Threads, p.KeyLen)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.MemoryKiB, p.Time, p.Threads,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Verify recomputes the key for secret and compares in constant time.
func (Argon2Hasher) Verify(secret, digest string) (bool, error) {
	p, salt, key, err := parsePHC(digest)
	if err != nil {
		return false, err
	}
	candidate := argon2.IDKey([]byte(secret), salt, p.Time, p.MemoryKiB, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

// parsePHC splits an argon2id PHC string into parameters, salt and key.
func parsePHC(digest string) (p Argon2Params, salt, key []byte, err error) {
	// Leading "$" gives an empty first field.
	fields := strings.Split(digest, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return p, nil, nil, errMalformedPHC
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: version %q", errMalformedPHC, fields[2])
	}
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, fmt.Errorf("%w: parameters %q", errMalformedPHC, fields[3])
	}

	b64 := base64.RawStdEncoding
	if salt, err = b64.DecodeString(fields[4]); err != nil {
		return p, nil, nil, fmt.Errorf("%w: salt: %w", errMalformedPHC, err)
	}
	if key, err = b64.DecodeString(fields[5]); err != nil || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("%w: key", errMalformedPHC)
	}
	p.KeyLen = uint32(len(key)) //nolint:gosec // decoded from a short PHC field
	return p, salt, key, nil
}
