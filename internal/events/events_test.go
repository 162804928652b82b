package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/secretgate/internal/infrastructure/mqtt"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingSink) Record(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

type fakePublisher struct {
	ctx      context.Context
	topic    string
	payload  []byte
	qos      byte
	retained bool
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error {
	p.ctx = ctx
	p.topic, p.payload, p.qos, p.retained = topic, payload, qos, retained
	return p.err
}

type fakeWriter struct {
	calls []string
	at    time.Time
}

func (w *fakeWriter) WriteAuthAttempt(eventType, method, outcome string, at time.Time) {
	w.calls = append(w.calls, eventType+"/"+method+"/"+outcome)
	w.at = at
}

func TestFanoutDeliversToEverySink(t *testing.T) {
	first := &recordingSink{err: errors.New("broker down")}
	second := &recordingSink{}

	var buf bytes.Buffer
	f := NewFanout(slog.New(slog.NewJSONHandler(&buf, nil)))
	f.Add("first", first)
	f.Add("second", second)

	f.Emit(context.Background(), Event{Type: TypeLogin, Identifier: "a@b.com", Outcome: "success"})

	if len(first.events) != 1 || len(second.events) != 1 {
		t.Fatalf("deliveries = %d/%d, want 1/1", len(first.events), len(second.events))
	}
	if !strings.Contains(buf.String(), `"sink":"first"`) {
		t.Errorf("sink failure not logged: %s", buf.String())
	}
	if strings.Contains(buf.String(), `"sink":"second"`) {
		t.Errorf("successful sink logged as failure: %s", buf.String())
	}
}

func TestFanoutStampsTime(t *testing.T) {
	sink := &recordingSink{}
	f := NewFanout(nil)
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return fixed }
	f.Add("rec", sink)

	f.Emit(context.Background(), Event{Type: TypeRegister})

	explicit := fixed.Add(-time.Hour)
	f.Emit(context.Background(), Event{Type: TypeRegister, At: explicit})

	if !sink.events[0].At.Equal(fixed) {
		t.Errorf("At = %v, want %v", sink.events[0].At, fixed)
	}
	if !sink.events[1].At.Equal(explicit) {
		t.Errorf("explicit At overwritten: %v", sink.events[1].At)
	}
}

func TestFanoutIgnoresCallerCancellation(t *testing.T) {
	var sawErr error
	f := NewFanout(nil)
	f.Add("ctx", SinkFunc(func(ctx context.Context, _ Event) error {
		sawErr = ctx.Err()
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.Emit(ctx, Event{Type: TypeLogout})

	if sawErr != nil {
		t.Errorf("sink context error = %v, want nil", sawErr)
	}
}

func TestNilFanout(t *testing.T) {
	var f *Fanout
	f.Emit(context.Background(), Event{Type: TypeLogin})
}

func TestMQTTSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub, mqtt.Topics{Prefix: "gate"}, 1)

	e := Event{
		Type:       TypeFederatedLogin,
		Identifier: "a@b.com",
		Method:     "federated",
		Provider:   "google",
		Outcome:    "success",
		At:         time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := sink.Record(context.Background(), e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if pub.topic != "gate/auth/event/federated_login" {
		t.Errorf("topic = %q", pub.topic)
	}
	if pub.qos != 1 || pub.retained {
		t.Errorf("qos/retained = %d/%v, want 1/false", pub.qos, pub.retained)
	}

	var got Event
	if err := json.Unmarshal(pub.payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.Provider != "google" || got.Identifier != "a@b.com" || !got.At.Equal(e.At) {
		t.Errorf("payload = %+v", got)
	}
}

func TestMQTTSinkPublishError(t *testing.T) {
	pub := &fakePublisher{err: mqtt.ErrNotConnected}
	sink := NewMQTTSink(pub, mqtt.Topics{}, 0)

	err := sink.Record(context.Background(), Event{Type: TypeLogin})
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Record() error = %v, want ErrNotConnected", err)
	}
}

// stalledPublisher blocks until the caller gives up.
type stalledPublisher struct{}

func (stalledPublisher) Publish(ctx context.Context, _ string, _ []byte, _ byte, _ bool) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestMQTTSinkPassesDeadline(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub, mqtt.Topics{}, 1)

	deadline := time.Now().Add(time.Minute)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	if err := sink.Record(ctx, Event{Type: TypeLogin}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	got, ok := pub.ctx.Deadline()
	if !ok || !got.Equal(deadline) {
		t.Errorf("publish deadline = %v (set %v), want %v", got, ok, deadline)
	}
}

func TestMQTTSinkStalledBroker(t *testing.T) {
	sink := NewMQTTSink(stalledPublisher{}, mqtt.Topics{}, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := sink.Record(ctx, Event{Type: TypeLogin})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Record() error = %v, want DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Record() took %v against a stalled broker", elapsed)
	}
}

func TestInfluxSink(t *testing.T) {
	w := &fakeWriter{}
	sink := NewInfluxSink(w)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if err := sink.Record(context.Background(), Event{
		Type: TypeLogin, Method: "local", Outcome: "bad_credential", At: at,
	}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if len(w.calls) != 1 || w.calls[0] != "login/local/bad_credential" {
		t.Errorf("calls = %v", w.calls)
	}
	if !w.at.Equal(at) {
		t.Errorf("at = %v, want %v", w.at, at)
	}
}
