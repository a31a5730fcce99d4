package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DeviceTimeLayout is the zone-less wall clock format relays report.
const DeviceTimeLayout = "2006-01-02T15:04:05"

// DeviceTime wraps a relay-reported timestamp. The wire format carries no
// timezone, so the value is parsed as UTC and reconciled against the
// arrival clock at promotion time.
type DeviceTime struct {
	time.Time
}

// UnmarshalJSON parses the relay's zone-less timestamp format.
func (t *DeviceTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseInLocation(DeviceTimeLayout, raw, time.UTC)
	if err != nil {
		return fmt.Errorf("device time %q: %w", raw, err)
	}
	t.Time = parsed
	return nil
}

// EnergyReading is the ENERGY block of a relay sensor report.
type EnergyReading struct {
	TotalStartTime string  `json:"TotalStartTime"`
	Total          float64 `json:"Total"` // lifetime kWh, counter-normalized downstream
	Yesterday      float64 `json:"Yesterday"`
	Today          float64 `json:"Today"`
	Period         float64 `json:"Period"`
	Power          float64 `json:"Power"` // W
	ApparentPower  float64 `json:"ApparentPower"`
	ReactivePower  float64 `json:"ReactivePower"`
	Factor         float64 `json:"Factor"`
	Voltage        float64 `json:"Voltage"`
	Current        float64 `json:"Current"`
}

// SensorReport is a relay's periodic sensor telemetry (SENSOR topic).
type SensorReport struct {
	Time   DeviceTime    `json:"Time"`
	Energy EnergyReading `json:"ENERGY"`
}

// WifiStatus is the wifi diagnostics block of a status report.
type WifiStatus struct {
	AP        int    `json:"AP"`
	SSID      string `json:"SSId"`
	BSSID     string `json:"BSSId"`
	Channel   int    `json:"Channel"`
	RSSI      int    `json:"RSSI"`
	Signal    int    `json:"Signal"`
	LinkCount int    `json:"LinkCount"`
	Downtime  string `json:"Downtime"`
}

// StateReport is a relay's periodic status telemetry (STATE topic).
type StateReport struct {
	Time      DeviceTime `json:"Time"`
	Uptime    string     `json:"Uptime"`
	UptimeSec int64      `json:"UptimeSec"`
	Vcc       float64    `json:"Vcc"`
	Power     string     `json:"POWER"`
	Sleep     int        `json:"Sleep"`
	SleepMode string     `json:"SleepMode"`
	LoadAvg   int        `json:"LoadAvg"`
	MqttCount int        `json:"MqttCount"`
	Wifi      WifiStatus `json:"Wifi"`
}

// PowerOn reports whether the relay output is switched on.
func (s *StateReport) PowerOn() bool {
	return strings.EqualFold(s.Power, "ON")
}

// ParseSensor decodes a sensor payload.
//
// Returns:
//   - *SensorReport: Decoded report
//   - error: ErrMalformedPayload wrapped with decode detail
func ParseSensor(payload []byte) (*SensorReport, error) {
	var report SensorReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("%w: sensor: %w", ErrMalformedPayload, err)
	}
	if report.Time.IsZero() {
		return nil, fmt.Errorf("%w: sensor: missing Time", ErrMalformedPayload)
	}
	return &report, nil
}

// ParseState decodes a status payload.
//
// Returns:
//   - *StateReport: Decoded report
//   - error: ErrMalformedPayload wrapped with decode detail
func ParseState(payload []byte) (*StateReport, error) {
	var report StateReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("%w: state: %w", ErrMalformedPayload, err)
	}
	if report.Time.IsZero() {
		return nil, fmt.Errorf("%w: state: missing Time", ErrMalformedPayload)
	}
	return &report, nil
}
