package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/secretgate/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
// Broker-backed tests need a Mosquitto broker at 127.0.0.1:1883 and are
// skipped when none is reachable.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "secretgate-test",
		},
		QoS:         1,
		TopicPrefix: "secretgate-test",
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func connectOrSkip(t *testing.T, cfg config.MQTTConfig) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping broker test in short mode")
	}
	client, err := Connect(cfg)
	if err != nil {
		t.Skipf("no MQTT broker available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// =============================================================================
// Topics
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"AuthEvent", Topics{Prefix: "secretgate"}.AuthEvent("login"), "secretgate/auth/event/login"},
		{"AuthEvent custom prefix", Topics{Prefix: "prod/gate"}.AuthEvent("register"), "prod/gate/auth/event/register"},
		{"AuthEvent trims slashes", Topics{Prefix: "/gate/"}.AuthEvent("logout"), "gate/auth/event/logout"},
		{"AllAuthEvents", Topics{Prefix: "secretgate"}.AllAuthEvents(), "secretgate/auth/event/+"},
		{"SystemStatus", Topics{Prefix: "secretgate"}.SystemStatus(), "secretgate/system/status"},
		{"empty prefix falls back", Topics{}.SystemStatus(), "secretgate/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

// =============================================================================
// Options
// =============================================================================

func TestClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "gate", Password: "pw"}

	opts := clientOptions(cfg, Topics{Prefix: "gate"})

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "secretgate-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "gate" || opts.Password != "pw" {
		t.Errorf("credentials not applied: %q/%q", opts.Username, opts.Password)
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS configured without broker.tls")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if opts.ConnectRetryInterval != time.Second || opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("reconnect intervals = %v/%v, want 1s/5s", opts.ConnectRetryInterval, opts.MaxReconnectInterval)
	}
}

func TestClientOptionsReconnectDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.Reconnect = config.MQTTReconnectConfig{}

	opts := clientOptions(cfg, Topics{})

	if opts.ConnectRetryInterval != defaultReconnectDelay {
		t.Errorf("ConnectRetryInterval = %v, want %v", opts.ConnectRetryInterval, defaultReconnectDelay)
	}
	if opts.MaxReconnectInterval != defaultMaxReconnectDelay {
		t.Errorf("MaxReconnectInterval = %v, want %v", opts.MaxReconnectInterval, defaultMaxReconnectDelay)
	}
}

func TestClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true

	opts := clientOptions(cfg, Topics{})

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS minimum version not set")
	}
}

func TestClientOptionsWill(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "gate-01"

	opts := clientOptions(cfg, Topics{Prefix: "gate"})

	if !opts.WillEnabled || !opts.WillRetained {
		t.Error("will should be enabled and retained")
	}
	if opts.WillTopic != "gate/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var payload statusMessage
	if err := json.Unmarshal(opts.WillPayload, &payload); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if payload.Status != statusOffline || payload.Reason != reasonUnexpected || payload.ClientID != "gate-01" {
		t.Errorf("will payload = %+v", payload)
	}
}

func TestStatusPayload(t *testing.T) {
	online := string(statusPayload(statusOnline, "x", ""))
	if !strings.Contains(online, `"status":"online"`) {
		t.Errorf("online payload = %s", online)
	}
	if strings.Contains(online, `"reason"`) {
		t.Errorf("online payload should omit reason: %s", online)
	}

	var offline statusMessage
	if err := json.Unmarshal(statusPayload(statusOffline, "x", reasonShutdown), &offline); err != nil {
		t.Fatalf("offline payload is not JSON: %v", err)
	}
	if offline.Reason != "graceful_shutdown" {
		t.Errorf("Reason = %q, want graceful_shutdown", offline.Reason)
	}
	if _, err := time.Parse(time.RFC3339, offline.Timestamp); err != nil {
		t.Errorf("Timestamp %q is not RFC3339: %v", offline.Timestamp, err)
	}
}

// =============================================================================
// Disconnected client
// =============================================================================

func TestCloseNil(t *testing.T) {
	var nilClient *Client
	if err := nilClient.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Close() on empty client error = %v", err)
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("{}"), 1, ErrInvalidTopic},
		{"single-level wildcard", "gate/+/login", []byte("{}"), 1, ErrInvalidTopic},
		{"multi-level wildcard", "gate/#", []byte("{}"), 1, ErrInvalidTopic},
		{"invalid qos", "t", []byte("{}"), 3, ErrInvalidQoS},
		{"oversized payload", "t", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "t", []byte("{}"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(context.Background(), tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// pendingToken never completes, like a publish to a stalled broker.
type pendingToken struct {
	done chan struct{}
	err  error
}

func (p *pendingToken) Wait() bool                     { <-p.done; return true }
func (p *pendingToken) WaitTimeout(time.Duration) bool { return false }
func (p *pendingToken) Done() <-chan struct{}          { return p.done }
func (p *pendingToken) Error() error                   { return p.err }

func TestWaitTokenHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := waitToken(ctx, &pendingToken{done: make(chan struct{})})
	if !errors.Is(err, ErrPublishFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("waitToken() error = %v, want ErrPublishFailed wrapping DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed >= publishTimeout {
		t.Errorf("waitToken() returned after %v, want the caller's deadline", elapsed)
	}
}

func TestWaitTokenResult(t *testing.T) {
	done := make(chan struct{})
	close(done)

	if err := waitToken(context.Background(), &pendingToken{done: done}); err != nil {
		t.Errorf("waitToken() error = %v, want nil", err)
	}

	brokerErr := errors.New("not authorized")
	err := waitToken(context.Background(), &pendingToken{done: done, err: brokerErr})
	if !errors.Is(err, ErrPublishFailed) || !errors.Is(err, brokerErr) {
		t.Errorf("waitToken() error = %v, want ErrPublishFailed wrapping %v", err, brokerErr)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Broker-backed
// =============================================================================

func TestConnect(t *testing.T) {
	client := connectOrSkip(t, testConfig())

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose(t *testing.T) {
	client := connectOrSkip(t, testConfig())

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close(), want false")
	}
}

func TestPublishAuthEventRoundtrip(t *testing.T) {
	cfg := testConfig()
	client := connectOrSkip(t, cfg)

	// Independent subscriber so the service client stays publish-only.
	subOpts := clientOptions(cfg, client.Topics())
	subOpts.SetClientID("secretgate-test-sub")
	sub := pahomqtt.NewClient(subOpts)
	if tok := sub.Connect(); !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
		t.Skipf("subscriber could not connect: %v", tok.Error())
	}
	defer sub.Disconnect(100)

	var (
		mu       sync.Mutex
		received []string
		done     = make(chan struct{}, 1)
	)
	tok := sub.Subscribe(client.Topics().AllAuthEvents(), 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		mu.Lock()
		received = append(received, msg.Topic())
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	})
	if !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
		t.Fatalf("subscribe failed: %v", tok.Error())
	}

	topic := client.Topics().AuthEvent("login")
	if err := client.Publish(context.Background(), topic, []byte(`{"type":"login"}`), client.QoS(), false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for auth event")
	}

	mu.Lock()
	defer mu.Unlock()
	if received[0] != topic {
		t.Errorf("received on %q, want %q", received[0], topic)
	}
}
