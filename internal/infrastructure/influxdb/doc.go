// Package influxdb records secretgate authentication metrics in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Each auth event becomes
// one point in the auth_attempts measurement, tagged by event type, method and
// outcome, so dashboards can chart login failures and registrations over time.
// Session cleanup passes are counted in the sessions measurement.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics are optional
//	}
//	defer client.Close()
//
//	client.WriteAuthAttempt("login", "local", "success", time.Now())
//
// # Error Handling
//
// Writes are non-blocking. Batch errors are delivered to the callback set
// with SetOnError. Connection and health check errors are returned directly.
package influxdb
