package influx

import (
	"context"
	"sync"
)

// Status describes how far a submitted record has progressed through the
// delivery pipeline.
type Status int

const (
	// StatusInitiated means the record has been created but not yet
	// accepted onto the writer's queue.
	StatusInitiated Status = iota

	// StatusBuffered means the record sits in the writer's pending batch
	// awaiting flush. A record returns to this state if a flush fails and
	// the batch is requeued.
	StatusBuffered

	// StatusAccepted means InfluxDB acknowledged the batch containing the
	// record. This state is terminal.
	StatusAccepted
)

// String returns a human-readable status name for logging.
func (s Status) String() string {
	switch s {
	case StatusInitiated:
		return "initiated"
	case StatusBuffered:
		return "buffered"
	case StatusAccepted:
		return "accepted"
	default:
		return "unknown"
	}
}

// StatusCell is a watchable delivery status for one submitted record.
//
// The writer advances the status as the record moves through the pipeline;
// producers may poll Status or block in Await until a desired state is
// reached. Cells are created by Writer.Submit.
//
// Thread Safety: all methods are safe for concurrent use.
type StatusCell struct {
	mu      sync.Mutex
	status  Status
	changed chan struct{}
}

func newStatusCell() *StatusCell {
	return &StatusCell{
		status:  StatusInitiated,
		changed: make(chan struct{}),
	}
}

// Status returns the current delivery status.
func (c *StatusCell) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// set advances the status and wakes any waiters. Setting the current
// status again is a no-op, so requeued records do not spuriously notify.
func (c *StatusCell) set(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == c.status {
		return
	}
	c.status = s
	close(c.changed)
	c.changed = make(chan struct{})
}

// Await blocks until the cell reaches at least the given status or the
// context is cancelled. Statuses are ordered, so waiting for
// StatusBuffered also returns once StatusAccepted is reached.
//
// Returns:
//   - nil when the desired status (or a later one) is observed
//   - ctx.Err() if the context is cancelled first
func (c *StatusCell) Await(ctx context.Context, want Status) error {
	for {
		c.mu.Lock()
		if c.status >= want {
			c.mu.Unlock()
			return nil
		}
		ch := c.changed
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
