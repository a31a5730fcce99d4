package influx

import "errors"

// Package-level sentinel errors for InfluxDB operations.
// Wrap with context when returning: fmt.Errorf("%w: %v", ErrWriteFailed, err)
var (
	// ErrConnectionFailed indicates the initial health check against the
	// InfluxDB instance did not succeed.
	ErrConnectionFailed = errors.New("influx: connection failed")

	// ErrWriteFailed indicates a write request was rejected or the HTTP
	// round trip failed.
	ErrWriteFailed = errors.New("influx: write failed")

	// ErrUnhealthy indicates a health check returned a non-passing status.
	ErrUnhealthy = errors.New("influx: instance unhealthy")

	// ErrWriterClosed indicates a submission arrived after the writer was
	// shut down.
	ErrWriterClosed = errors.New("influx: writer closed")
)
