package telemetry

import (
	"time"

	"github.com/nerrad567/gray-meter-core/internal/influx"
)

// MeasurementTelemetry is the sink measurement completed relay records
// are written to.
const MeasurementTelemetry = "telemetry"

// CompletedRecord is one promoted, paired and normalized relay datum,
// ready for encoding and delivery.
type CompletedRecord struct {
	Device    string
	Timestamp time.Time // reconciled, millisecond precision

	Power         float64
	ApparentPower float64
	ReactivePower float64
	PowerFactor   float64
	Voltage       float64
	Current       float64

	// EnergyWh is the counter-normalized lifetime energy in Wh. It
	// starts at zero and restarts from zero when the device counter
	// resets.
	EnergyWh float64

	DeviceUptimeSec  int64
	MonitorUptimeSec int64
	PowerOn          bool
}

// Encode renders the record as one line protocol entry.
func (r *CompletedRecord) Encode() []byte {
	return influx.EncodeLine(MeasurementTelemetry,
		map[string]string{"device": r.Device},
		map[string]interface{}{
			"power":          r.Power,
			"apparent_power": r.ApparentPower,
			"reactive_power": r.ReactivePower,
			"power_factor":   r.PowerFactor,
			"voltage":        r.Voltage,
			"current":        r.Current,
			"energy":         r.EnergyWh,
			"device_uptime":  r.DeviceUptimeSec,
			"monitor_uptime": r.MonitorUptimeSec,
			"power_on":       r.PowerOn,
		},
		r.Timestamp)
}
