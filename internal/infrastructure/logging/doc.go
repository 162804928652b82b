// Package logging configures the service's structured log/slog output.
//
// Every entry carries service=secretgate and the build version. Attributes
// that name a credential (password, secret, token, client_secret, cookie,
// authorization, code) are replaced with [REDACTED] before they are written,
// so identifiers may be logged but secrets may not.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("login rejected", "identifier", email, "reason", "bad_credential")
package logging
