package telemetry

import (
	"time"

	"github.com/nerrad567/gray-meter-core/internal/influx"
)

// fragmentPair holds the partially-received fragments for one device
// timestamp. firstSeen is the collector-side arrival of the first
// fragment, used for stale eviction.
type fragmentPair struct {
	sensor    *SensorReport
	state     *StateReport
	firstSeen time.Time
}

// Device is the per-device correlation state: pending fragment pairs
// keyed by the device-reported timestamp, the counter normalizer for the
// lifetime energy counter, and delivery handles for promoted records.
//
// A timestamp is removed from pending exactly when both fragment kinds
// are present; it never lingers complete. Fragments strictly older than
// the newest promoted timestamp are dropped before they can touch
// normalizer state, so replays cannot corrupt the completed series.
//
// Thread Safety: not safe for concurrent use. All devices are owned and
// mutated exclusively by the Collector goroutine.
type Device struct {
	name         string
	pending      map[int64]*fragmentPair // key: device timestamp, unix ms
	lastPromoted int64                   // unix ms, 0 = nothing promoted yet
	energy       CounterNormalizer
	created      time.Time
	lastWill     string
	sent         map[int64]*influx.StatusCell

	logger Logger
	now    func() time.Time
}

func newDevice(name string, logger Logger, now func() time.Time) *Device {
	if logger == nil {
		logger = noopLogger{}
	}
	if now == nil {
		now = time.Now
	}
	return &Device{
		name:    name,
		pending: make(map[int64]*fragmentPair),
		sent:    make(map[int64]*influx.StatusCell),
		created: now().UTC(),
		logger:  logger,
		now:     now,
	}
}

// Name returns the device identifier.
func (d *Device) Name() string {
	return d.name
}

// ApplySensor stores a sensor fragment, promoting the timestamp to a
// completed record when its status fragment is already present.
//
// Returns:
//   - *CompletedRecord: Non-nil only when this fragment completed a pair
//   - error: ErrOutOfOrder when the fragment's timestamp has already
//     been superseded; the fragment is dropped
func (d *Device) ApplySensor(report *SensorReport) (*CompletedRecord, error) {
	key := report.Time.UnixMilli()
	if err := d.checkOrder(key, KindSensor); err != nil {
		return nil, err
	}

	pair := d.pair(key)
	if pair.sensor != nil {
		d.logger.Debug("duplicate sensor fragment, overwriting",
			"device", d.name,
			"timestamp", report.Time.Format(DeviceTimeLayout))
	}
	pair.sensor = report

	if pair.state != nil {
		return d.promote(key, pair), nil
	}
	return nil, nil
}

// ApplyState stores a status fragment, promoting the timestamp to a
// completed record when its sensor fragment is already present.
//
// Returns:
//   - *CompletedRecord: Non-nil only when this fragment completed a pair
//   - error: ErrOutOfOrder when the fragment's timestamp has already
//     been superseded; the fragment is dropped
func (d *Device) ApplyState(report *StateReport) (*CompletedRecord, error) {
	key := report.Time.UnixMilli()
	if err := d.checkOrder(key, KindState); err != nil {
		return nil, err
	}

	pair := d.pair(key)
	if pair.state != nil {
		d.logger.Debug("duplicate state fragment, overwriting",
			"device", d.name,
			"timestamp", report.Time.Format(DeviceTimeLayout))
	}
	pair.state = report

	if pair.sensor != nil {
		return d.promote(key, pair), nil
	}
	return nil, nil
}

// checkOrder enforces strict promotion monotonicity: a fragment at a
// timestamp that has already been promoted, or an older one, is a replay
// and is dropped.
func (d *Device) checkOrder(key int64, kind Kind) error {
	if d.lastPromoted != 0 && key <= d.lastPromoted {
		d.logger.Warn("dropping out-of-order fragment",
			"device", d.name,
			"kind", kind.String(),
			"timestamp_ms", key,
			"newest_promoted_ms", d.lastPromoted)
		return ErrOutOfOrder
	}
	return nil
}

func (d *Device) pair(key int64) *fragmentPair {
	p, ok := d.pending[key]
	if !ok {
		p = &fragmentPair{firstSeen: d.now().UTC()}
		d.pending[key] = p
	}
	return p
}

// promote combines a completed fragment pair into a record, reconciling
// the timestamp against the arrival clock and normalizing the energy
// counter. The pending entry is removed and the promotion watermark
// advances.
func (d *Device) promote(key int64, pair *fragmentPair) *CompletedRecord {
	delete(d.pending, key)
	d.lastPromoted = key

	arrival := d.now().UTC()
	deviceTS := FixupDeviceTime(time.UnixMilli(key).UTC(), arrival)

	ts, drift, substituted := Reconcile(deviceTS, arrival)
	if substituted {
		d.logger.Warn("device clock drift exceeds tolerance, using arrival time",
			"device", d.name,
			"drift_ms", drift.Milliseconds())
	}

	// Lifetime energy arrives in kWh; normalize in Wh.
	energyWh, reset := d.energy.Observe(pair.sensor.Energy.Total * 1000)
	if reset {
		d.logger.Info("energy counter reset detected",
			"device", d.name,
			"raw_kwh", pair.sensor.Energy.Total)
	}

	return &CompletedRecord{
		Device:           d.name,
		Timestamp:        ts,
		Power:            pair.sensor.Energy.Power,
		ApparentPower:    pair.sensor.Energy.ApparentPower,
		ReactivePower:    pair.sensor.Energy.ReactivePower,
		PowerFactor:      pair.sensor.Energy.Factor,
		Voltage:          pair.sensor.Energy.Voltage,
		Current:          pair.sensor.Energy.Current,
		EnergyWh:         energyWh,
		DeviceUptimeSec:  pair.state.UptimeSec,
		MonitorUptimeSec: int64(arrival.Sub(d.created).Seconds()),
		PowerOn:          pair.state.PowerOn(),
	}
}

// SetLastWill records the device's latest liveness string.
func (d *Device) SetLastWill(payload string) {
	d.lastWill = payload
}

// TrackDelivery retains the delivery status handle for a promoted
// record. Accepted handles are pruned by SweepStale.
func (d *Device) TrackDelivery(timestampMs int64, cell *influx.StatusCell) {
	if cell != nil {
		d.sent[timestampMs] = cell
	}
}

// SweepStale evicts pending fragment pairs whose first fragment arrived
// more than age ago. Devices that send one fragment kind but never the
// matching kind must not retain unbounded memory. Promoted data is never
// affected. Delivery handles whose records have been accepted by the
// sink are pruned in the same pass.
//
// Returns:
//   - int: Number of pending entries removed
func (d *Device) SweepStale(age time.Duration) int {
	cutoff := d.now().UTC().Add(-age)
	removed := 0
	for key, pair := range d.pending {
		if pair.firstSeen.Before(cutoff) {
			delete(d.pending, key)
			removed++
			d.logger.Warn("evicting stale unpaired fragment",
				"device", d.name,
				"timestamp_ms", key,
				"has_sensor", pair.sensor != nil,
				"has_state", pair.state != nil)
		}
	}
	for key, cell := range d.sent {
		if cell.Status() == influx.StatusAccepted {
			delete(d.sent, key)
		}
	}
	return removed
}

// Snapshot is a read-only view of one device's state, served to the ops
// API through the collector loop.
type Snapshot struct {
	Name            string    `json:"name"`
	PendingPairs    int       `json:"pending_pairs"`
	Unacknowledged  int       `json:"unacknowledged_records"`
	LastPromotedMs  int64     `json:"last_promoted_ms,omitempty"`
	LastWill        string    `json:"last_will,omitempty"`
	MonitoringSince time.Time `json:"monitoring_since"`
}

// Snapshot captures the device's current state.
func (d *Device) Snapshot() Snapshot {
	return Snapshot{
		Name:            d.name,
		PendingPairs:    len(d.pending),
		Unacknowledged:  len(d.sent),
		LastPromotedMs:  d.lastPromoted,
		LastWill:        d.lastWill,
		MonitoringSince: d.created,
	}
}
