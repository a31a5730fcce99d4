// Package telemetry correlates partial relay reports into normalized
// time-series records.
//
// Relays publish two independent report streams per reporting period: a
// sensor report (power, voltage, current, lifetime energy) and a status
// report (on/off state, uptime), both stamped with the device's own
// clock. This package pairs the two streams per device and timestamp,
// repairs the lifetime energy counter across device reboots, reconciles
// device clocks against the arrival clock, and emits one CompletedRecord
// per paired timestamp.
//
// # Architecture
//
// A single Collector goroutine owns every Device and the Registry; bus
// messages for all devices funnel through one channel and are handled in
// arrival order, so device state carries no locks. Message flow:
//
//	bus message → Scheme (device + kind) → Registry (locate/create)
//	  → Device (pair fragments, maybe promote) → CompletedRecord
//	  → encode → LineWriter
//
// Promotion is strictly monotonic per device: fragments at or before the
// newest promoted timestamp are dropped, which keeps the completed
// series exactly-once per timestamp and protects normalizer state from
// replays. A periodic sweep evicts fragment pairs whose partner never
// arrived.
package telemetry
