// Package events fans authentication events out to the audit trail, the MQTT
// event stream and InfluxDB metrics.
//
// Handlers build one Event per attempt and hand it to a Fanout. Sinks are
// best effort: a failing sink is logged and never changes the response the
// user sees.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	TypeRegister       = "register"
	TypeLogin          = "login"
	TypeFederatedLogin = "federated_login"
	TypeLogout         = "logout"
)

// Event describes one authentication attempt and how it ended.
type Event struct {
	Type       string    `json:"type"`
	Identifier string    `json:"identifier"`
	Method     string    `json:"method"`
	Provider   string    `json:"provider,omitempty"`
	Outcome    string    `json:"outcome"`
	Source     string    `json:"source,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	At         time.Time `json:"at"`
}

// Sink receives events.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e Event) error

// Record calls f(ctx, e).
func (f SinkFunc) Record(ctx context.Context, e Event) error {
	return f(ctx, e)
}
