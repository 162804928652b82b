package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurements written by secretgate.
const (
	MeasurementAuthAttempts = "auth_attempts"
	MeasurementSessions     = "sessions"
)

// WriteAuthAttempt records one authentication event as a counter point.
//
// Tags stay low-cardinality: the identifier is deliberately not a tag.
// The write is non-blocking; points are batched and sent asynchronously.
//
// Example:
//
//	client.WriteAuthAttempt("login", "local", "bad_credential", time.Now())
func (c *Client) WriteAuthAttempt(eventType, method, outcome string, at time.Time) {
	c.WritePointWithTime(MeasurementAuthAttempts,
		map[string]string{
			"type":    eventType,
			"method":  method,
			"outcome": outcome,
		},
		map[string]interface{}{
			"count": 1,
		},
		at,
	)
}

// WriteSessionPurge records how many expired sessions a cleanup pass removed.
func (c *Client) WriteSessionPurge(removed int64) {
	c.WritePoint(MeasurementSessions, map[string]string{"kind": "purge"}, map[string]interface{}{"removed": removed})
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
// Points written to a nil or closed Client are dropped.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if c == nil {
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.open {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
