package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultQueryTimeout bounds a single datastore round-trip when none is configured.
const DefaultQueryTimeout = 3 * time.Second

// Verifier holds the credential decision rules. It keeps no mutable state and
// is safe for concurrent use; the datastore is the only shared resource.
type Verifier struct {
	accounts     AccountRepository
	hasher       Hasher
	queryTimeout time.Duration
}

// NewVerifier creates a Verifier. A non-positive queryTimeout uses DefaultQueryTimeout.
func NewVerifier(accounts AccountRepository, hasher Hasher, queryTimeout time.Duration) *Verifier {
	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}
	return &Verifier{
		accounts:     accounts,
		hasher:       hasher,
		queryTimeout: queryTimeout,
	}
}

// AccountExists reports whether an account is registered under identifier and
// returns it when it is. A datastore failure is returned as ErrStoreUnavailable,
// never as a false "does not exist".
func (v *Verifier) AccountExists(ctx context.Context, identifier string) (bool, *Account, error) {
	identifier, err := checkIdentifier(identifier)
	if err != nil {
		return false, nil, err
	}

	account, err := v.find(ctx, identifier)
	switch {
	case err == nil:
		return true, account, nil
	case errors.Is(err, ErrNotFound):
		return false, nil, nil
	default:
		return false, nil, err
	}
}

// Register hashes secret and creates a local account for identifier.
//
// The insert itself is the uniqueness check: if another request registered the
// same identifier first, ErrDuplicateIdentifier is returned and no second
// record is created.
func (v *Verifier) Register(ctx context.Context, identifier, secret string) (*Account, error) {
	identifier, err := checkIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	if secret == "" {
		return nil, ErrInvalidSecret
	}

	digest, err := v.hasher.Hash(secret)
	if err != nil {
		return nil, err
	}

	account := &Account{
		Identifier:     identifier,
		Method:         MethodLocal,
		CredentialHash: digest,
	}
	if err := v.insert(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Authenticate checks secret against the local credential of identifier.
//
// Returns ErrNotFound when no account exists and ErrBadCredential when the
// secret does not match or the account has no local credential (federated).
func (v *Verifier) Authenticate(ctx context.Context, identifier, secret string) (*Account, error) {
	identifier, err := checkIdentifier(identifier)
	if err != nil {
		return nil, err
	}

	account, err := v.find(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if !account.HasLocalCredential() {
		return nil, ErrBadCredential
	}

	ok, err := v.hasher.Verify(secret, account.CredentialHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadCredential, err)
	}
	if !ok {
		return nil, ErrBadCredential
	}

	return account, nil
}

// LoginFederated accepts an identity already verified by provider.
//
// An existing account with the same identifier is used as is, whatever its
// method. Otherwise a federated account is created. If that insert loses a
// race to a concurrent request, the winner's record is fetched and returned,
// so exactly one account exists afterwards. created reports whether this call
// made the record.
func (v *Verifier) LoginFederated(ctx context.Context, provider, identifier string) (account *Account, created bool, err error) {
	identifier, err = checkIdentifier(identifier)
	if err != nil {
		return nil, false, err
	}
	if provider == "" {
		return nil, false, errors.New("federated login requires a provider")
	}

	account, err = v.find(ctx, identifier)
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	account = &Account{
		Identifier: identifier,
		Method:     MethodFederated,
		Provider:   provider,
	}
	err = v.insert(ctx, account)
	if err == nil {
		return account, true, nil
	}
	if !errors.Is(err, ErrDuplicateIdentifier) {
		return nil, false, err
	}

	account, err = v.find(ctx, identifier)
	if err != nil {
		return nil, false, err
	}
	return account, false, nil
}

func (v *Verifier) find(ctx context.Context, identifier string) (*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, v.queryTimeout)
	defer cancel()

	account, err := v.accounts.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	return account, nil
}

func (v *Verifier) insert(ctx context.Context, account *Account) error {
	ctx, cancel := context.WithTimeout(ctx, v.queryTimeout)
	defer cancel()

	if err := v.accounts.Insert(ctx, account); err != nil {
		return classifyStoreError(err)
	}
	return nil
}

// classifyStoreError keeps the repository's domain errors and turns anything
// else, including deadline expiry, into ErrStoreUnavailable.
func classifyStoreError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrDuplicateIdentifier),
		errors.Is(err, ErrStoreUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}

func checkIdentifier(identifier string) (string, error) {
	identifier = NormalizeIdentifier(identifier)
	if identifier == "" || len(identifier) > maxIdentifierLength {
		return "", ErrInvalidIdentifier
	}
	return identifier, nil
}
