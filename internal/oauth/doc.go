// Package oauth implements Google sign-in for secretgate.
//
// The flow is the standard authorization-code grant:
//
//  1. /auth/google issues a random nonce, stores it in a short-lived cookie,
//     and redirects to Google with a signed state token carrying the nonce.
//  2. Google redirects back to /auth/google/secrets with code and state.
//  3. The callback verifies the state against the cookie nonce, exchanges the
//     code, and reads the user's email from the userinfo endpoint.
//
// Only verified email addresses are accepted. The resulting Identity is
// handed to auth.Verifier.LoginFederated.
package oauth
