package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/secretgate/internal/infrastructure/config"
)

// Client publishes secretgate's auth events and online status to a broker.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	paho     pahomqtt.Client
	topics   Topics
	clientID string
	qos      byte

	mu           sync.RWMutex
	connected    bool
	onConnect    func()
	onDisconnect func(err error)
}

// Connect dials the broker and waits up to connectTimeout for the session.
// On every (re)connect the retained status topic is set to online.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		topics:   Topics{Prefix: cfg.TopicPrefix},
		clientID: cfg.Broker.ClientID,
		qos:      byte(cfg.QoS), //nolint:gosec // validated to 0..2 by config
	}

	opts := clientOptions(cfg, c.topics).
		SetOnConnectHandler(func(pahomqtt.Client) { c.setConnected(true, nil) }).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.setConnected(false, err) })

	c.paho = pahomqtt.NewClient(opts)
	token := c.paho.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: no CONNACK after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously and may not have fired yet.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return c, nil
}

// Topics returns the topic builder bound to the configured prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// QoS returns the configured QoS for auth events.
func (c *Client) QoS() byte {
	return c.qos
}

// setConnected records a connection change, refreshes the retained status on
// connect and runs the matching callback.
func (c *Client) setConnected(up bool, cause error) {
	c.mu.Lock()
	c.connected = up
	onConnect, onDisconnect := c.onConnect, c.onDisconnect
	c.mu.Unlock()

	if up {
		c.paho.Publish(c.topics.SystemStatus(), c.qos, true, statusPayload(statusOnline, c.clientID, ""))
		if onConnect != nil {
			onConnect()
		}
		return
	}
	if onDisconnect != nil {
		onDisconnect(cause)
	}
}

// Close marks the service offline and disconnects. A nil or never-connected
// Client is not an error.
func (c *Client) Close() error {
	if c == nil || c.paho == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.paho.Publish(c.topics.SystemStatus(), c.qos, true,
			statusPayload(statusOffline, c.clientID, reasonShutdown))
		token.WaitTimeout(publishTimeout)
	}
	c.paho.Disconnect(disconnectQuiesceMillis)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

// HealthCheck reports ErrNotConnected while the broker session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.paho != nil && c.paho.IsConnected()
}

// SetOnConnect sets a callback invoked on every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}
