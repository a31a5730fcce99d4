package telemetry

import "errors"

// Package-level sentinel errors for telemetry processing.
// All are per-message conditions: callers log and drop, never terminate.
var (
	// ErrUnroutable indicates no device identifier could be derived from
	// a topic.
	ErrUnroutable = errors.New("telemetry: unroutable topic")

	// ErrMalformedPayload indicates a payload failed to decode against
	// the expected JSON schema.
	ErrMalformedPayload = errors.New("telemetry: malformed payload")

	// ErrOutOfOrder indicates a fragment's timestamp is older than the
	// newest record already promoted for its device.
	ErrOutOfOrder = errors.New("telemetry: out-of-order fragment")
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
