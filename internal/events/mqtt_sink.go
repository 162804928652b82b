package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/secretgate/internal/infrastructure/mqtt"
)

// Publisher is the subset of *mqtt.Client the MQTT sink needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
}

// MQTTSink publishes each event as JSON to <prefix>/auth/event/<type>.
type MQTTSink struct {
	pub    Publisher
	topics mqtt.Topics
	qos    byte
}

// NewMQTTSink creates a sink publishing through pub.
func NewMQTTSink(pub Publisher, topics mqtt.Topics, qos byte) *MQTTSink {
	return &MQTTSink{pub: pub, topics: topics, qos: qos}
}

// Record implements Sink. Events are never retained. The broker
// acknowledgement is awaited no longer than ctx allows.
func (s *MQTTSink) Record(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding auth event: %w", err)
	}

	if err := s.pub.Publish(ctx, s.topics.AuthEvent(e.Type), payload, s.qos, false); err != nil {
		return fmt.Errorf("publishing auth event: %w", err)
	}
	return nil
}
