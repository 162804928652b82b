// Package auth decides whether a presented credential grants a session.
//
// It owns:
//   - the Verifier (account lookup, local secret verification, registration,
//     federated find-or-create)
//   - password hashing (bcrypt by default, Argon2id selectable)
//   - the SQL account and session repositories
//   - the SessionManager that issues, resolves and purges server-side sessions
//
// Accounts carry an explicit AuthMethod: local accounts have a credential hash,
// federated accounts record their provider and can never pass a local secret
// check. Identifier uniqueness is enforced by the datastore; a racing insert
// surfaces as ErrDuplicateIdentifier. Any datastore failure or timeout surfaces
// as ErrStoreUnavailable, never as "not found".
package auth
