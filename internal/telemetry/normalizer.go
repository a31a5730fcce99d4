package telemetry

// CounterNormalizer converts a device-reported cumulative counter into a
// series that starts at zero and restarts from zero whenever the device
// counter resets, so absolute meter readings never leak into the sink.
//
// normalized = raw - offset. The offset starts at the first observed raw
// value; any decrease in the raw value is treated as a counter reset and
// moves the offset to the new raw value. No attempt is made to filter
// transient glitches, a decrease always resets.
//
// The same algorithm serves the relays' lifetime energy counter and the
// pulse meter's impulse count. The zero value is ready for use.
//
// Thread Safety: not safe for concurrent use; each instance is owned by
// a single goroutine.
type CounterNormalizer struct {
	initialized bool
	lastRaw     float64
	offset      float64
}

// Observe feeds one raw counter value and returns the normalized value.
// reset is true when this observation was interpreted as a counter reset.
func (n *CounterNormalizer) Observe(raw float64) (normalized float64, reset bool) {
	if !n.initialized {
		n.initialized = true
		n.offset = raw
		n.lastRaw = raw
		return 0, false
	}
	if raw < n.lastRaw {
		n.offset = raw
		reset = true
	}
	n.lastRaw = raw
	return raw - n.offset, reset
}
