package telemetry

import (
	"fmt"
	"sort"
	"time"
)

// Registry holds every known device's correlation state, keyed by device
// name, with a secondary topic index for O(1) dispatch after a device's
// first sighting.
//
// Thread Safety: not safe for concurrent use. The registry is owned and
// mutated exclusively by the Collector goroutine; the ops API reads it
// through snapshot requests serviced on that goroutine.
type Registry struct {
	scheme  Scheme
	devices map[string]*Device
	topics  map[string]string // topic → device name
	logger  Logger
	now     func() time.Time
}

// NewRegistry creates an empty registry using the given topic scheme.
func NewRegistry(scheme Scheme) *Registry {
	return &Registry{
		scheme:  scheme,
		devices: make(map[string]*Device),
		topics:  make(map[string]string),
		logger:  noopLogger{},
		now:     time.Now,
	}
}

// SetLogger configures structured logging for the registry and every
// device it creates afterwards.
func (r *Registry) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// setNow overrides the clock. Tests only.
func (r *Registry) setNow(now func() time.Time) {
	r.now = now
}

// Resolve maps a topic to its device, creating the device on first
// sighting. The observed topic is indexed so subsequent lookups skip the
// scheme entirely.
//
// Returns:
//   - *Device: The device owning this topic
//   - Kind: The telemetry kind the topic carries
//   - error: ErrUnroutable when no device can be derived; the caller
//     logs and drops the message
func (r *Registry) Resolve(topic string) (*Device, Kind, error) {
	kind, name, ok := r.scheme.Parse(topic)

	if indexed, hit := r.topics[topic]; hit {
		return r.devices[indexed], kind, nil
	}

	if !ok {
		return nil, KindUnknown, fmt.Errorf("%w: %q", ErrUnroutable, topic)
	}

	device, exists := r.devices[name]
	if !exists {
		device = r.Register(name)
		r.logger.Info("discovered device", "device", name, "topic", topic)
	}
	r.topics[topic] = name
	return device, kind, nil
}

// Register creates (or replaces) the state for a device name and indexes
// its canonical topics. Replacing an existing device first removes every
// topic index entry pointing at it, so no stale entry can resolve to the
// discarded state. Replacement throws away any unpaired fragments and
// normalizer state; this is deliberate re-provisioning support.
func (r *Registry) Register(name string) *Device {
	if _, exists := r.devices[name]; exists {
		for topic, owner := range r.topics {
			if owner == name {
				delete(r.topics, topic)
			}
		}
		r.logger.Info("replacing device state", "device", name)
	}

	device := newDevice(name, r.logger, r.now)
	r.devices[name] = device
	for _, topic := range r.scheme.DeviceTopics(name) {
		r.topics[topic] = name
	}
	return device
}

// Get returns the device for a name, if known.
func (r *Registry) Get(name string) (*Device, bool) {
	device, ok := r.devices[name]
	return device, ok
}

// Names returns all device names in lexicographic order. Maintenance
// iterates in this order so behaviour is deterministic.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.devices))
	for name := range r.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SweepStale runs the stale-fragment sweep across every device in name
// order and returns the total number of entries evicted.
func (r *Registry) SweepStale(age time.Duration) int {
	removed := 0
	for _, name := range r.Names() {
		removed += r.devices[name].SweepStale(age)
	}
	return removed
}

// Snapshots captures every device's state in name order.
func (r *Registry) Snapshots() []Snapshot {
	names := r.Names()
	out := make([]Snapshot, 0, len(names))
	for _, name := range names {
		out = append(out, r.devices[name].Snapshot())
	}
	return out
}
