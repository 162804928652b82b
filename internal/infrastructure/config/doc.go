// Package config loads secretgate's configuration.
//
// Values are layered: built-in defaults, then the YAML file, then
// SECRETGATE_* environment variables (SECRETGATE_SESSION_SECRET,
// SECRETGATE_DATABASE_DSN, SECRETGATE_OAUTH_GOOGLE_CLIENT_SECRET, ...).
// The merged result is validated before Load returns.
//
// Keep the session secret, OAuth client secret and database DSN out of the
// file and in the environment; if they must live in the file, make it 0600.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return fmt.Errorf("loading config: %w", err)
//	}
package config
