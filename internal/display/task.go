// Package display drives an MQTT-attached character display with live
// and historical energy usage, and forwards configured panel buttons to
// their output topics.
package display

import (
	"context"
	"time"

	"github.com/nerrad567/gray-meter-core/internal/infrastructure/config"
)

const (
	defaultInboxSize = 8
	refreshInterval  = 10 * time.Minute
)

// Publisher is the outbound bus surface the task needs.
// *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Task renders a page to the display topic for every meter summary it
// receives, enriched with yesterday's usage series from the query
// endpoint. Yesterday's data is cached and refreshed only when the date
// rolls over.
//
// Thread Safety: HandleMeterReading and HandleButton may be called from
// bus handler goroutines; page state is owned by the Run loop. Button
// forwarding is stateless and publishes directly.
type Task struct {
	cfg       config.DisplayConfig
	publisher Publisher
	source    UsageSource
	logger    Logger

	inbox chan []byte
	now   func() time.Time

	// Yesterday's usage cache, owned by the Run loop.
	cachedDate   time.Time
	cachedPoints []UsagePoint
}

// NewTask wires a display task. source may be nil, in which case the
// yesterday line stays blank.
func NewTask(cfg config.DisplayConfig, publisher Publisher, source UsageSource) *Task {
	return &Task{
		cfg:       cfg,
		publisher: publisher,
		source:    source,
		logger:    noopLogger{},
		inbox:     make(chan []byte, defaultInboxSize),
		now:       time.Now,
	}
}

// SetLogger configures structured logging. Must be called before Run.
func (t *Task) SetLogger(logger Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// HandleMeterReading queues one meter summary payload for rendering.
// Stale queued pages are harmless; the next reading overwrites them.
func (t *Task) HandleMeterReading(payload []byte) {
	select {
	case t.inbox <- payload:
	default:
		// The display lags the meter; dropping a frame is better than
		// backpressuring the bus client.
	}
}

// HandleButton forwards a panel button press to its configured output
// topic. When the button config carries a fixed payload it replaces the
// inbound one.
func (t *Task) HandleButton(topic string, payload []byte) {
	for _, button := range t.cfg.Buttons {
		if button.Topic != topic {
			continue
		}
		out := payload
		if button.OutputPayload != "" {
			out = []byte(button.OutputPayload)
		}
		if err := t.publisher.Publish(button.OutputTopic, out, 0, button.Retain); err != nil {
			t.logger.Warn("button forward failed",
				"topic", topic,
				"output_topic", button.OutputTopic,
				"error", err)
		}
		return
	}
	t.logger.Debug("unconfigured button topic", "topic", topic)
}

// Run renders pages until the context is cancelled, then publishes the
// shutdown page.
//
// Returns:
//   - error: always nil; render and fetch failures are logged
func (t *Task) Run(ctx context.Context) error {
	t.logger.Info("display task started", "topic", t.cfg.Topic)

	t.refresh(ctx)
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case payload := <-t.inbox:
			t.render(payload)

		case <-ticker.C:
			t.refresh(ctx)

		case <-ctx.Done():
			t.logger.Info("display task stopped")
			if err := t.publisher.Publish(t.cfg.Topic, []byte(ShutdownPage), 0, t.cfg.Retain); err != nil {
				t.logger.Warn("shutdown page publish failed", "error", err)
			}
			return nil
		}
	}
}

// render formats and publishes one page.
func (t *Task) render(payload []byte) {
	reading, err := parseMeterReading(payload)
	if err != nil {
		t.logger.Warn("dropping malformed meter reading", "error", err)
		return
	}

	now := t.now()
	page := RenderPage(now, reading, t.yesterdayAt(now))
	if err := t.publisher.Publish(t.cfg.Topic, []byte(page), 0, t.cfg.Retain); err != nil {
		t.logger.Warn("page publish failed", "error", err)
	}
}

// yesterdayAt picks the cached usage sample closest after this time of
// day yesterday, or nil when the cache is missing or from an older day.
func (t *Task) yesterdayAt(now time.Time) *UsagePoint {
	if len(t.cachedPoints) == 0 {
		return nil
	}
	target := now.AddDate(0, 0, -1)
	if !sameDate(t.cachedDate, target) {
		return nil
	}
	for i := range t.cachedPoints {
		if !t.cachedPoints[i].TS.Before(target) {
			return &t.cachedPoints[i]
		}
	}
	return nil
}

// refresh fetches yesterday's usage series when the cache is empty or
// the date has rolled over.
func (t *Task) refresh(ctx context.Context) {
	if t.source == nil {
		return
	}
	yesterday := t.now().AddDate(0, 0, -1)
	if len(t.cachedPoints) > 0 && sameDate(t.cachedDate, yesterday) {
		return
	}

	t.logger.Info("fetching energy usage data",
		"date", yesterday.Format("2006-01-02"))

	points, err := t.source.FetchDay(ctx, yesterday)
	if err != nil {
		t.logger.Warn("usage fetch failed", "error", err)
		return
	}
	t.cachedDate = yesterday
	t.cachedPoints = points
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
