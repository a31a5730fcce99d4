package display

import (
	"encoding/json"
	"fmt"
	"time"
)

// MeterReading is the summary the meter-reader hardware publishes
// alongside its raw impulse stream.
type MeterReading struct {
	Power           int64 `json:"power"`            // W
	EnergyToday     int64 `json:"energy_today"`     // Wh
	EnergyYesterday int64 `json:"energy_yesterday"` // Wh
	EnergyLifetime  int64 `json:"energy_lifetime"`  // Wh
}

// ShutdownPage is published when the task stops, so the panel does not
// keep showing stale numbers.
const ShutdownPage = "\n  meter  agent\n    shutdown\n "

// parseMeterReading decodes a meter summary payload.
func parseMeterReading(payload []byte) (*MeterReading, error) {
	var reading MeterReading
	if err := json.Unmarshal(payload, &reading); err != nil {
		return nil, fmt.Errorf("meter reading: %w", err)
	}
	return &reading, nil
}

// RenderPage formats the 4-line character display page:
//
//	HH:MM:SS      123W   clock and instantaneous power
//	T  1234Wh @ 567W     today's usage and average draw so far
//	Yn 1234Wh @ 567W     usage by this time yesterday (blank if unknown)
//	Yt 1234Wh @ 567W     yesterday's total and whole-day average
//
// yesterdaySoFar may be nil when yesterday's data has not been fetched
// yet; its line renders empty.
func RenderPage(now time.Time, reading *MeterReading, yesterdaySoFar *UsagePoint) string {
	secondsToday := now.Hour()*3600 + now.Minute()*60 + now.Second()

	line3 := ""
	if yesterdaySoFar != nil {
		ts := yesterdaySoFar.TS
		secs := ts.Hour()*3600 + ts.Minute()*60 + ts.Second()
		line3 = fmt.Sprintf("Yn%5dWh @%4.0fW",
			yesterdaySoFar.ValueWh,
			averageWatts(yesterdaySoFar.ValueWh, secs))
	}

	return fmt.Sprintf("%02d:%02d:%02d %6dW\nT %5dWh @%4.0fW\n%s\nYt%5dWh @%4.0fW",
		now.Hour(), now.Minute(), now.Second(),
		reading.Power,
		reading.EnergyToday,
		averageWatts(reading.EnergyToday, secondsToday),
		line3,
		reading.EnergyYesterday,
		float64(reading.EnergyYesterday)*3600.0/86400.0)
}

// averageWatts converts cumulative Wh over an elapsed number of seconds
// into an average power. Zero elapsed time (exactly midnight) yields 0.
func averageWatts(energyWh int64, elapsedSec int) float64 {
	if elapsedSec <= 0 {
		return 0
	}
	return float64(energyWh) * 3600.0 / float64(elapsedSec)
}
