// Secretgate - Credential Verifier Login Service
//
// This is the main entry point for the secretgate web service. It serves the
// register, login and secrets pages, verifies local and Google credentials
// against the account datastore, and streams auth events to the audit trail
// and the optional MQTT and InfluxDB sinks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/secretgate/migrations"

	"github.com/nerrad567/secretgate/internal/audit"
	"github.com/nerrad567/secretgate/internal/auth"
	"github.com/nerrad567/secretgate/internal/events"
	"github.com/nerrad567/secretgate/internal/infrastructure/config"
	"github.com/nerrad567/secretgate/internal/infrastructure/database"
	"github.com/nerrad567/secretgate/internal/infrastructure/influxdb"
	"github.com/nerrad567/secretgate/internal/infrastructure/logging"
	"github.com/nerrad567/secretgate/internal/infrastructure/mqtt"
	"github.com/nerrad567/secretgate/internal/oauth"
	"github.com/nerrad567/secretgate/internal/web"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configPathEnv     = "SECRETGATE_CONFIG"

	defaultCleanupInterval = 5 * time.Minute
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It blocks until ctx is cancelled, then shuts everything down in reverse
// order of startup.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting secretgate",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	hasher, err := auth.NewHasher(cfg.Security.Password.Algorithm, cfg.Security.Password.BcryptCost)
	if err != nil {
		return fmt.Errorf("configuring password hashing: %w", err)
	}
	verifier := auth.NewVerifier(auth.NewAccountRepository(db), hasher, cfg.QueryTimeout())
	sessions := auth.NewSessionManager(auth.NewSessionRepository(db), cfg.SessionTTL(), cfg.QueryTimeout())

	// Auth events always reach the audit trail; MQTT and InfluxDB are optional.
	auditRepo := audit.NewSQLRepository(db)
	fanout := events.NewFanout(log.Logger)
	fanout.Add("audit", audit.NewRecorder(auditRepo))
	checks := make(map[string]web.HealthChecker)
	var onPurge func(int64)

	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := connectMQTT(cfg, log)
		if mqttErr != nil {
			return mqttErr
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		fanout.Add("mqtt", events.NewMQTTSink(mqttClient, mqttClient.Topics(), mqttClient.QoS()))
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := connectInfluxDB(cfg, log)
		if influxErr != nil {
			return influxErr
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		fanout.Add("influxdb", events.NewInfluxSink(influxClient))
		checks["influxdb"] = influxClient
		onPurge = influxClient.WriteSessionPurge
	} else {
		log.Info("InfluxDB disabled")
	}

	cleanupInterval := time.Duration(cfg.Session.CleanupInterval) * time.Second
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}
	go sessions.RunCleanup(ctx, cleanupInterval, log.Logger, onPurge)

	deps := web.Deps{
		Config:    cfg,
		Logger:    log,
		Verifier:  verifier,
		Sessions:  sessions,
		Events:    fanout,
		Audit:     auditRepo,
		Database:  db,
		Checks:    checks,
		AssetsDir: os.Getenv("SECRETGATE_ASSETS_DIR"),
		Version:   version,
	}
	if cfg.OAuth.Google.Enabled {
		deps.Google = oauth.NewGoogleProvider(oauth.GoogleConfig{
			ClientID:     cfg.OAuth.Google.ClientID,
			ClientSecret: cfg.OAuth.Google.ClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL(),
			Scopes:       cfg.OAuth.Google.Scopes,
		})
		deps.State = oauth.NewStateSigner(cfg.Session.Secret, oauth.DefaultStateTTL)
		log.Info("google sign-in enabled", "redirect_url", cfg.GoogleRedirectURL())
	}

	srv, err := web.New(deps)
	if err != nil {
		return fmt.Errorf("creating web server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting web server: %w", err)
	}
	defer func() {
		log.Info("stopping web server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error stopping web server", "error", closeErr)
		}
	}()
	log.Info("web server listening", "addr", srv.Addr(), "tls", cfg.HTTP.TLS.Enabled)

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// web server, InfluxDB, MQTT, database.
	return nil
}

// getConfigPath returns SECRETGATE_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv(configPathEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Driver:       cfg.Database.Driver,
		Path:         cfg.Database.Path,
		DSN:          cfg.Database.DSN,
		WALMode:      cfg.Database.WALMode,
		BusyTimeout:  cfg.Database.BusyTimeout,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s database: %w", cfg.Database.Driver, err)
	}
	log.Info("database connected", "driver", db.Dialect(), "path", db.Path())

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("reading migration status: %w", err)
	}
	log.Info("database migrations complete", "applied", len(status.Applied))
	return db, nil
}

func connectMQTT(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"topic_prefix", client.Topics().Prefix,
	)
	return client, nil
}

func connectInfluxDB(cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(cfg.InfluxDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}
