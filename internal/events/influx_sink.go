package events

import (
	"context"
	"time"
)

// PointWriter is the subset of *influxdb.Client the metrics sink needs.
type PointWriter interface {
	WriteAuthAttempt(eventType, method, outcome string, at time.Time)
}

// InfluxSink counts events in the auth_attempts measurement.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Record implements Sink. Writes are batched by the client, so this never fails.
func (s *InfluxSink) Record(_ context.Context, e Event) error {
	s.w.WriteAuthAttempt(e.Type, e.Method, e.Outcome, e.At)
	return nil
}
