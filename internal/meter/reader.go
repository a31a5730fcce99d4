// Package meter ingests the pulse-counting energy meter's impulse
// stream. Unlike the relays there is a single fragment per event, so no
// pairing is needed; the cumulative impulse count goes straight through
// the counter normalizer.
package meter

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/nerrad567/gray-meter-core/internal/infrastructure/config"
	"github.com/nerrad567/gray-meter-core/internal/influx"
	"github.com/nerrad567/gray-meter-core/internal/telemetry"
)

const defaultInboxSize = 64

// MeasurementImpulse is the sink measurement impulse records are
// written to.
const MeasurementImpulse = "impulse"

// Impulse is one pulse event from the meter reader hardware.
type Impulse struct {
	ImpulseCount int64   `json:"impulse_count"` // cumulative, resets on reboot
	Clock        int64   `json:"clock"`         // µs since meter boot
	Interval     int64   `json:"interval"`      // µs since previous pulse
	Power        float64 `json:"power"`         // W, derived from interval
}

// Reader owns the impulse stream's state: the counter normalizer for the
// cumulative pulse count and the first-impulse instant for uptime
// accounting. State is created lazily on the first impulse and lives for
// the process lifetime.
//
// Thread Safety: HandleMessage may be called from the bus client's
// handler goroutine; all state is mutated only on the Run loop.
type Reader struct {
	cfg        config.MeterConfig
	writer     telemetry.LineWriter
	normalizer telemetry.CounterNormalizer
	started    time.Time

	logger telemetry.Logger
	inbox  chan []byte
	now    func() time.Time
}

// NewReader wires a pulse-meter reader around a record writer.
func NewReader(cfg config.MeterConfig, writer telemetry.LineWriter) *Reader {
	return &Reader{
		cfg:    cfg,
		writer: writer,
		logger: noopLogger{},
		inbox:  make(chan []byte, defaultInboxSize),
		now:    time.Now,
	}
}

// SetLogger configures structured logging. Must be called before Run.
func (r *Reader) SetLogger(logger telemetry.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// HandleMessage queues one impulse payload for processing. Blocks when
// the inbox is full.
func (r *Reader) HandleMessage(payload []byte) {
	r.inbox <- payload
}

// Run processes impulses until the context is cancelled.
//
// Returns:
//   - error: always nil; malformed payloads are logged and dropped
func (r *Reader) Run(ctx context.Context) error {
	r.logger.Info("meter reader started",
		"topic", r.cfg.Topic,
		"device", r.cfg.Device)

	for {
		select {
		case payload := <-r.inbox:
			r.process(payload)
		case <-ctx.Done():
			r.logger.Info("meter reader stopped")
			return nil
		}
	}
}

// process normalizes one impulse and submits it for delivery.
func (r *Reader) process(payload []byte) {
	impulse, err := parseImpulse(payload)
	if err != nil {
		r.logger.Warn("dropping malformed impulse payload", "error", err)
		return
	}

	arrival := r.now().UTC()
	if r.started.IsZero() {
		r.started = arrival
		r.logger.Info("first impulse received",
			"device", r.cfg.Device,
			"impulse_count", impulse.ImpulseCount)
	}

	energy, reset := r.normalizer.Observe(float64(impulse.ImpulseCount))
	if reset {
		r.logger.Info("impulse counter reset detected",
			"device", r.cfg.Device,
			"raw_count", impulse.ImpulseCount)
	}

	line := influx.EncodeLine(MeasurementImpulse,
		map[string]string{"device": r.cfg.Device},
		map[string]interface{}{
			"energy":         int64(energy),
			"power":          int64(math.Round(impulse.Power)),
			"device_uptime":  impulse.Clock / 1_000_000,
			"monitor_uptime": int64(arrival.Sub(r.started).Seconds()),
		},
		arrival)

	if _, err := r.writer.Submit(line); err != nil {
		r.logger.Warn("impulse submission failed", "error", err)
	}
}

func parseImpulse(payload []byte) (*Impulse, error) {
	var impulse Impulse
	if err := json.Unmarshal(payload, &impulse); err != nil {
		return nil, fmt.Errorf("%w: impulse: %w", telemetry.ErrMalformedPayload, err)
	}
	return &impulse, nil
}

// noopLogger discards all log output. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
