// Gray Meter Core - Home Energy Telemetry Collector
//
// This is the main entry point for the Gray Meter Core application.
// Gray Meter ingests telemetry from smart power-metering relays and a
// pulse-counting energy meter over MQTT, correlates partial reports into
// normalized time-series records, and forwards them to InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-meter-core/internal/api"
	"github.com/nerrad567/gray-meter-core/internal/display"
	"github.com/nerrad567/gray-meter-core/internal/infrastructure/config"
	"github.com/nerrad567/gray-meter-core/internal/infrastructure/logging"
	"github.com/nerrad567/gray-meter-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-meter-core/internal/influx"
	"github.com/nerrad567/gray-meter-core/internal/meter"
	"github.com/nerrad567/gray-meter-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Meter Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Connect to InfluxDB (health-checked) or run against a discard sink
	// in read-only mode.
	var sink influx.Sink
	var influxClient *influx.Client
	if cfg.InfluxDB.ReadOnly {
		log.Warn("InfluxDB in read-only mode, batches will be discarded")
		sink = influx.NewDiscardSink(log)
	} else {
		influxClient, err = influx.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		sink = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		// Startup marker so restarts are visible in the bucket.
		marker := influx.EncodeLine("graymeter",
			map[string]string{"reason": "started"},
			map[string]interface{}{"pid": int64(os.Getpid())},
			time.Now())
		if err := influxClient.WriteBatch(ctx, marker); err != nil {
			log.Warn("startup marker write failed", "error", err)
		}
	}

	// Batch writer
	writer := influx.NewWriter(sink, influx.WriterOptions{
		QueueSize:     cfg.InfluxDB.Writer.QueueSize,
		MaxLines:      cfg.InfluxDB.Writer.MaxLines,
		MaxBytes:      cfg.InfluxDB.Writer.MaxBytes,
		FlushInterval: cfg.InfluxDB.Writer.FlushEvery(),
	})
	writer.SetLogger(log.With("component", "writer"))

	// Topic scheme and correlation engine
	scheme, err := buildScheme(cfg.Telemetry, log)
	if err != nil {
		return err
	}
	registry := telemetry.NewRegistry(scheme)
	registry.SetLogger(log.With("component", "registry"))

	collector := telemetry.NewCollector(registry, writer, telemetry.CollectorOptions{
		StaleAge:      cfg.Telemetry.StaleAge(),
		SweepInterval: cfg.Telemetry.SweepEvery(),
	})
	collector.SetLogger(log.With("component", "collector"))

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
	)

	qos := byte(cfg.MQTT.QoS)

	// Relay telemetry feeds the collector loop.
	if err := mqttClient.Subscribe(scheme.SubscriptionFilter(), qos, func(topic string, payload []byte) error {
		collector.HandleMessage(topic, payload)
		return nil
	}); err != nil {
		return fmt.Errorf("subscribing to telemetry: %w", err)
	}
	log.Info("subscribed to relay telemetry", "filter", scheme.SubscriptionFilter())

	group, groupCtx := errgroup.WithContext(ctx)

	// The writer runs outside the group and is closed only after every
	// producer goroutine has exited, so a record promoted during
	// shutdown still reaches the final flush.
	go func() {
		_ = writer.Run(context.Background())
	}()

	group.Go(func() error {
		return collector.Run(groupCtx)
	})
	group.Go(func() error {
		select {
		case err := <-mqttClient.Fatal():
			return err
		case <-groupCtx.Done():
			return nil
		}
	})

	// Pulse meter
	if cfg.Meter.Enabled {
		reader := meter.NewReader(cfg.Meter, writer)
		reader.SetLogger(log.With("component", "meter"))
		if err := mqttClient.Subscribe(cfg.Meter.Topic, qos, func(_ string, payload []byte) error {
			reader.HandleMessage(payload)
			return nil
		}); err != nil {
			return fmt.Errorf("subscribing to impulse stream: %w", err)
		}
		group.Go(func() error {
			return reader.Run(groupCtx)
		})
		log.Info("pulse meter reader started", "topic", cfg.Meter.Topic)
	}

	// Character display
	if cfg.Display.Enabled {
		var source display.UsageSource
		if cfg.InfluxDB.Token != "" {
			queryClient := influx.NewQueryClient(cfg.InfluxDB)
			defer queryClient.Close()
			source = display.NewFluxSource(queryClient, cfg.Display.MeterDevice)
		}
		task := display.NewTask(cfg.Display, mqttClient, source)
		task.SetLogger(log.With("component", "display"))

		if err := mqttClient.Subscribe(cfg.Display.MeterTopic, qos, func(_ string, payload []byte) error {
			task.HandleMeterReading(payload)
			return nil
		}); err != nil {
			return fmt.Errorf("subscribing to meter summary: %w", err)
		}
		for _, button := range cfg.Display.Buttons {
			if err := mqttClient.Subscribe(button.Topic, qos, func(topic string, payload []byte) error {
				task.HandleButton(topic, payload)
				return nil
			}); err != nil {
				return fmt.Errorf("subscribing to display button: %w", err)
			}
		}
		group.Go(func() error {
			return task.Run(groupCtx)
		})
		log.Info("display task started", "topic", cfg.Display.Topic)
	}

	// Ops API
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:    cfg.API,
			Logger:    log.With("component", "api"),
			Collector: collector,
			Broker:    mqttClient,
			Version:   version,
		}
		if influxClient != nil {
			deps.Sink = influxClient
		}
		server, err := api.New(deps)
		if err != nil {
			return fmt.Errorf("creating ops API: %w", err)
		}
		if err := server.Start(groupCtx); err != nil {
			return fmt.Errorf("starting ops API: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing ops API", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, collecting telemetry")

	err = group.Wait()

	// All producers have stopped. Close drains the submission queue and
	// attempts one final flush before the writer exits.
	writer.Close()

	log.Info("Gray Meter Core stopped")
	return err
}

// buildScheme selects the topic scheme from configuration.
func buildScheme(cfg config.TelemetryConfig, log *logging.Logger) (telemetry.Scheme, error) {
	switch cfg.Scheme {
	case "regex":
		scheme, err := telemetry.NewRegexScheme(
			cfg.DeviceIDPattern,
			cfg.KindPattern,
			cfg.TopicPrefix+"/#",
			log)
		if err != nil {
			return nil, fmt.Errorf("building topic scheme: %w", err)
		}
		return scheme, nil
	default:
		return telemetry.NewFixedScheme(cfg.TopicPrefix), nil
	}
}

// getConfigPath returns the configuration file path.
// Uses GRAYMETER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYMETER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
