package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/gray-meter-core/internal/influx"
)

// Default collector tuning.
const (
	defaultInboxSize     = 256
	defaultStaleAge      = 5 * time.Minute
	defaultSweepInterval = time.Minute
)

// LineWriter is the delivery surface the collector hands encoded records
// to. *influx.Writer satisfies it.
type LineWriter interface {
	Submit(line []byte) (*influx.StatusCell, error)
}

// Message is one inbound bus message, queued for the collector loop.
type Message struct {
	Topic   string
	Payload []byte
}

// CollectorOptions tunes the collector loop. Zero values select
// defaults.
type CollectorOptions struct {
	// InboxSize is the inbound message channel capacity.
	InboxSize int

	// StaleAge is the eviction threshold for unpaired fragments.
	StaleAge time.Duration

	// SweepInterval is how often the stale sweep runs.
	SweepInterval time.Duration
}

func (o CollectorOptions) withDefaults() CollectorOptions {
	if o.InboxSize <= 0 {
		o.InboxSize = defaultInboxSize
	}
	if o.StaleAge <= 0 {
		o.StaleAge = defaultStaleAge
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = defaultSweepInterval
	}
	return o
}

// Collector is the single control loop that owns the registry and all
// device state. Inbound messages from every device funnel through one
// channel and are processed strictly in arrival order, so correlation
// and normalization state needs no locking.
//
// Per-message failures (unroutable topic, malformed payload, replayed
// fragment) are logged and isolated; nothing a device publishes can
// terminate the loop.
type Collector struct {
	registry *Registry
	writer   LineWriter
	opts     CollectorOptions
	logger   Logger

	inbox     chan Message
	snapshots chan chan []Snapshot
}

// NewCollector wires a collector around a registry and a record writer.
func NewCollector(registry *Registry, writer LineWriter, opts CollectorOptions) *Collector {
	opts = opts.withDefaults()
	return &Collector{
		registry:  registry,
		writer:    writer,
		opts:      opts,
		logger:    noopLogger{},
		inbox:     make(chan Message, opts.InboxSize),
		snapshots: make(chan chan []Snapshot),
	}
}

// SetLogger configures structured logging. Must be called before Run.
func (c *Collector) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// HandleMessage queues one bus message for processing. Called from the
// bus client's handler goroutine; blocks when the inbox is full, which
// backpressures the bus client rather than dropping telemetry.
func (c *Collector) HandleMessage(topic string, payload []byte) {
	c.inbox <- Message{Topic: topic, Payload: payload}
}

// Snapshot returns a point-in-time view of every device, serviced by the
// collector loop itself so no lock is needed around device state.
//
// Returns:
//   - []Snapshot: Devices in name order
//   - error: ctx.Err() if the context expires before the loop responds
func (c *Collector) Snapshot(ctx context.Context) ([]Snapshot, error) {
	reply := make(chan []Snapshot, 1)
	select {
	case c.snapshots <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run executes the collector loop until the context is cancelled.
//
// Returns:
//   - error: always nil; per-message errors are logged, not propagated
func (c *Collector) Run(ctx context.Context) error {
	sweep := time.NewTicker(c.opts.SweepInterval)
	defer sweep.Stop()

	c.logger.Info("collector started",
		"stale_age", c.opts.StaleAge.String(),
		"sweep_interval", c.opts.SweepInterval.String())

	for {
		select {
		case msg := <-c.inbox:
			c.process(msg)

		case <-sweep.C:
			if removed := c.registry.SweepStale(c.opts.StaleAge); removed > 0 {
				c.logger.Info("swept stale fragments", "removed", removed)
			}

		case reply := <-c.snapshots:
			reply <- c.registry.Snapshots()

		case <-ctx.Done():
			c.logger.Info("collector stopped")
			return nil
		}
	}
}

// process routes one message through scheme → registry → device.
func (c *Collector) process(msg Message) {
	device, kind, err := c.registry.Resolve(msg.Topic)
	if err != nil {
		c.logger.Warn("dropping unroutable message", "topic", msg.Topic)
		return
	}

	switch kind {
	case KindSensor:
		report, err := ParseSensor(msg.Payload)
		if err != nil {
			c.logger.Warn("dropping malformed sensor payload",
				"device", device.Name(), "error", err)
			return
		}
		c.apply(device, func() (*CompletedRecord, error) {
			return device.ApplySensor(report)
		})

	case KindState:
		report, err := ParseState(msg.Payload)
		if err != nil {
			c.logger.Warn("dropping malformed state payload",
				"device", device.Name(), "error", err)
			return
		}
		c.apply(device, func() (*CompletedRecord, error) {
			return device.ApplyState(report)
		})

	case KindLastWill:
		device.SetLastWill(string(msg.Payload))
		c.logger.Info("device liveness update",
			"device", device.Name(), "state", string(msg.Payload))

	default:
		c.logger.Debug("ignoring message of unknown kind", "topic", msg.Topic)
	}
}

// apply runs a fragment mutation and dispatches the completed record it
// may produce.
func (c *Collector) apply(device *Device, mutate func() (*CompletedRecord, error)) {
	record, err := mutate()
	if err != nil {
		// Out-of-order drops are already logged with device context.
		if !errors.Is(err, ErrOutOfOrder) {
			c.logger.Warn("fragment rejected", "device", device.Name(), "error", err)
		}
		return
	}
	if record == nil {
		return
	}

	cell, err := c.writer.Submit(record.Encode())
	if err != nil {
		// Only happens during shutdown; the record is lost with the rest
		// of the in-memory state.
		c.logger.Warn("record submission failed",
			"device", device.Name(), "error", err)
		return
	}
	device.TrackDelivery(record.Timestamp.UnixMilli(), cell)

	c.logger.Debug("record promoted",
		"device", device.Name(),
		"timestamp", record.Timestamp.Format(time.RFC3339),
		"power_w", record.Power,
		"energy_wh", record.EnergyWh)
}
