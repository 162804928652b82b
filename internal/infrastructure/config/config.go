package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix shared by every environment override.
const EnvPrefix = "SECRETGATE_"

// Config is the root configuration structure for secretgate.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	App      AppConfig      `yaml:"app" envPrefix:"APP_"`
	Database DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
	HTTP     HTTPConfig     `yaml:"http" envPrefix:"HTTP_"`
	Session  SessionConfig  `yaml:"session" envPrefix:"SESSION_"`
	Security SecurityConfig `yaml:"security" envPrefix:"SECURITY_"`
	OAuth    OAuthConfig    `yaml:"oauth" envPrefix:"OAUTH_"`
	MQTT     MQTTConfig     `yaml:"mqtt" envPrefix:"MQTT_"`
	InfluxDB InfluxDBConfig `yaml:"influxdb" envPrefix:"INFLUXDB_"`
	Logging  LoggingConfig  `yaml:"logging" envPrefix:"LOGGING_"`
}

// AppConfig identifies the running instance.
type AppConfig struct {
	Name string `yaml:"name" env:"NAME"`
	// BaseURL is the externally visible origin, used to build OAuth redirect URLs.
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
}

// DatabaseConfig selects and tunes the account datastore.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver" env:"DRIVER"`
	// Path is the SQLite file path.
	Path string `yaml:"path" env:"PATH"`
	// DSN is the PostgreSQL connection string.
	DSN          string `yaml:"dsn" env:"DSN"`
	WALMode      bool   `yaml:"wal_mode" env:"WAL_MODE"`
	BusyTimeout  int    `yaml:"busy_timeout" env:"BUSY_TIMEOUT"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// QueryTimeout bounds each datastore round-trip, in milliseconds.
	QueryTimeout int `yaml:"query_timeout" env:"QUERY_TIMEOUT"`
}

// HTTPConfig contains web server settings.
type HTTPConfig struct {
	Host         string            `yaml:"host" env:"HOST"`
	Port         int               `yaml:"port" env:"PORT"`
	TLS          TLSConfig         `yaml:"tls" envPrefix:"TLS_"`
	Timeouts     HTTPTimeoutConfig `yaml:"timeouts" envPrefix:"TIMEOUT_"`
	MaxBodyBytes int64             `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	CertFile string `yaml:"cert_file" env:"CERT_FILE"`
	KeyFile  string `yaml:"key_file" env:"KEY_FILE"`
}

// HTTPTimeoutConfig contains HTTP timeout settings in seconds.
type HTTPTimeoutConfig struct {
	Read  int `yaml:"read" env:"READ"`
	Write int `yaml:"write" env:"WRITE"`
	Idle  int `yaml:"idle" env:"IDLE"`
}

// SessionConfig controls server-side login sessions.
type SessionConfig struct {
	CookieName string `yaml:"cookie_name" env:"COOKIE_NAME"`
	// MaxAge is the session lifetime in minutes.
	MaxAge int `yaml:"max_age" env:"MAX_AGE"`
	// Secure marks cookies as HTTPS-only.
	Secure bool `yaml:"secure" env:"SECURE"`
	// CleanupInterval is how often expired sessions are purged, in seconds.
	CleanupInterval int `yaml:"cleanup_interval" env:"CLEANUP_INTERVAL"`
	// Secret signs the OAuth state token. Flash cookies are not signed; they
	// only carry display text, which templates escape.
	Secret string `yaml:"secret" env:"SECRET"`
}

// SecurityConfig contains credential handling settings.
type SecurityConfig struct {
	Password PasswordConfig `yaml:"password" envPrefix:"PASSWORD_"`
	// RevealLoginFailureReason shows "user doesn't exist" and "wrong password"
	// to the visitor instead of one generic message.
	RevealLoginFailureReason bool `yaml:"reveal_login_failure_reason" env:"REVEAL_LOGIN_FAILURE_REASON"`
}

// PasswordConfig selects the hashing scheme for new local accounts.
type PasswordConfig struct {
	// Algorithm is "bcrypt" or "argon2id".
	Algorithm  string `yaml:"algorithm" env:"ALGORITHM"`
	BcryptCost int    `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
}

// OAuthConfig lists federated login providers.
type OAuthConfig struct {
	Google GoogleConfig `yaml:"google" envPrefix:"GOOGLE_"`
}

// GoogleConfig contains Google OAuth2 client settings.
type GoogleConfig struct {
	Enabled      bool     `yaml:"enabled" env:"ENABLED"`
	ClientID     string   `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string   `yaml:"client_secret" env:"CLIENT_SECRET"`
	RedirectURL  string   `yaml:"redirect_url" env:"REDIRECT_URL"`
	Scopes       []string `yaml:"scopes" env:"SCOPES" envSeparator:","`
}

// MQTTConfig contains MQTT broker connection settings for the auth event stream.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled" env:"ENABLED"`
	Broker      MQTTBrokerConfig    `yaml:"broker" envPrefix:"BROKER_"`
	Auth        MQTTAuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	QoS         int                 `yaml:"qos" env:"QOS"`
	TopicPrefix string              `yaml:"topic_prefix" env:"TOPIC_PREFIX"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect" envPrefix:"RECONNECT_"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	TLS      bool   `yaml:"tls" env:"TLS"`
	ClientID string `yaml:"client_id" env:"CLIENT_ID"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay" env:"INITIAL_DELAY"`
	MaxDelay     int `yaml:"max_delay" env:"MAX_DELAY"`
	MaxAttempts  int `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
}

// InfluxDBConfig contains InfluxDB connection settings for auth metrics.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" env:"ENABLED"`
	URL           string `yaml:"url" env:"URL"`
	Token         string `yaml:"token" env:"TOKEN"`
	Org           string `yaml:"org" env:"ORG"`
	Bucket        string `yaml:"bucket" env:"BUCKET"`
	BatchSize     int    `yaml:"batch_size" env:"BATCH_SIZE"`
	FlushInterval int    `yaml:"flush_interval" env:"FLUSH_INTERVAL"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
	Output string `yaml:"output" env:"OUTPUT"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SECRETGATE_SECTION_KEY
// For example: SECRETGATE_DATABASE_DSN, SECRETGATE_SESSION_SECRET
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "secretgate",
			BaseURL: "http://localhost:3000",
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			Path:         "./data/secretgate.db",
			WALMode:      true,
			BusyTimeout:  5,
			MaxOpenConns: 10,
			QueryTimeout: 3000,
		},
		HTTP: HTTPConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: HTTPTimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
			MaxBodyBytes: 1 << 20,
		},
		Session: SessionConfig{
			CookieName:      "secretgate_session",
			MaxAge:          60,
			CleanupInterval: 300,
		},
		Security: SecurityConfig{
			Password: PasswordConfig{
				Algorithm:  "bcrypt",
				BcryptCost: 10,
			},
		},
		OAuth: OAuthConfig{
			Google: GoogleConfig{
				Scopes: []string{"openid", "email", "profile"},
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "secretgate",
			},
			QoS:         1,
			TopicPrefix: "secretgate",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "secretgate",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies SECRETGATE_* environment variables on top of the file values.
// Unset variables leave the loaded value untouched.
func applyEnvOverrides(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parsing environment overrides: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, "database.dsn is required for the postgres driver (set SECRETGATE_DATABASE_DSN)")
		}
	default:
		errs = append(errs, "database.driver must be sqlite or postgres")
	}
	if c.Database.QueryTimeout <= 0 {
		errs = append(errs, "database.query_timeout must be positive")
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, "http.port must be between 1 and 65535")
	}
	if c.HTTP.TLS.Enabled && (c.HTTP.TLS.CertFile == "" || c.HTTP.TLS.KeyFile == "") {
		errs = append(errs, "http.tls requires cert_file and key_file")
	}

	if c.Session.MaxAge <= 0 {
		errs = append(errs, "session.max_age must be a positive number of minutes")
	}
	if c.Session.CookieName == "" {
		errs = append(errs, "session.cookie_name is required")
	}

	// The session secret signs OAuth state; a short one can be brute forced offline.
	const minSessionSecretLength = 32
	if c.Session.Secret == "" {
		errs = append(errs, "session.secret is required (set SECRETGATE_SESSION_SECRET environment variable)")
	} else if len(c.Session.Secret) < minSessionSecretLength {
		errs = append(errs, "session.secret must be at least 32 characters for adequate security")
	}

	switch c.Security.Password.Algorithm {
	case "bcrypt":
		if c.Security.Password.BcryptCost < 4 || c.Security.Password.BcryptCost > 31 {
			errs = append(errs, "security.password.bcrypt_cost must be between 4 and 31")
		}
	case "argon2id":
	default:
		errs = append(errs, "security.password.algorithm must be bcrypt or argon2id")
	}

	if g := c.OAuth.Google; g.Enabled {
		if g.ClientID == "" || g.ClientSecret == "" {
			errs = append(errs, "oauth.google requires client_id and client_secret when enabled")
		}
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the HTTP read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.HTTP.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the HTTP write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.HTTP.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the HTTP idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.HTTP.Timeouts.Idle) * time.Second
}

// SessionTTL returns the session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.MaxAge) * time.Minute
}

// QueryTimeout returns the per round-trip datastore timeout.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Database.QueryTimeout) * time.Millisecond
}

// GoogleRedirectURL returns the configured callback URL, or one derived from app.base_url.
func (c *Config) GoogleRedirectURL() string {
	if c.OAuth.Google.RedirectURL != "" {
		return c.OAuth.Google.RedirectURL
	}
	return strings.TrimRight(c.App.BaseURL, "/") + "/auth/google/secrets"
}
