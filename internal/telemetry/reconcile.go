package telemetry

import "time"

// DriftTolerance is the maximum accepted divergence between a device's
// reported timestamp and the collector's arrival clock. Beyond this the
// device clock is considered unsynchronized and the arrival timestamp is
// recorded instead.
const DriftTolerance = 20000 * time.Millisecond

// FixupDeviceTime resolves the ambiguity of the zone-less device clock
// by substituting the arrival timestamp's hour-of-day. Devices report
// local wall time with no offset; minutes and seconds are trusted, the
// hour comes from the collector's clock.
func FixupDeviceTime(device, arrival time.Time) time.Time {
	return time.Date(
		device.Year(), device.Month(), device.Day(),
		arrival.Hour(),
		device.Minute(), device.Second(), device.Nanosecond(),
		time.UTC,
	)
}

// Reconcile chooses between the device-reported timestamp and the
// arrival timestamp.
//
// Returns:
//   - chosen: the device timestamp when drift is within DriftTolerance,
//     otherwise the arrival timestamp
//   - drift: |arrival - device|
//   - substituted: true when the arrival timestamp was used
func Reconcile(device, arrival time.Time) (chosen time.Time, drift time.Duration, substituted bool) {
	drift = arrival.Sub(device)
	if drift < 0 {
		drift = -drift
	}
	if drift > DriftTolerance {
		return arrival, drift, true
	}
	return device, drift, false
}
