package mqtt

import "errors"

// Sentinel errors for broker operations, matchable with errors.Is.
var (
	// ErrNotConnected means an operation was attempted while the client
	// has no broker connection.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed means the initial connection attempt did not
	// succeed within the connect timeout.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrBrokerLost means an established connection dropped while
	// auto-reconnect is disabled. Delivered through Client.Fatal and
	// treated as terminal by the collector.
	ErrBrokerLost = errors.New("mqtt: broker connection lost")

	// ErrPublishFailed wraps a failed or timed-out publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps a failed or timed-out subscribe.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS means a QoS level outside 0..2 was requested.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic means an empty topic was provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
