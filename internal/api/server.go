// Package api provides the read-only HTTP ops endpoint for Gray Meter
// Core: process health, device correlation state, and version.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-meter-core/internal/infrastructure/config"
	"github.com/nerrad567/gray-meter-core/internal/infrastructure/logging"
	"github.com/nerrad567/gray-meter-core/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// healthProbeTimeout bounds each dependency probe in the health handler.
const healthProbeTimeout = 3 * time.Second

// SnapshotSource serves point-in-time views of the device registry.
// *telemetry.Collector satisfies it.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]telemetry.Snapshot, error)
}

// HealthChecker is a dependency that can be actively probed.
// *mqtt.Client and *influx.Client satisfy it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the ops server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Collector SnapshotSource
	Broker    HealthChecker // optional
	Sink      HealthChecker // optional
	Version   string
}

// Server is the ops HTTP server. Created with New(), started with
// Start(), stopped with Close().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	collector SnapshotSource
	broker    HealthChecker
	sink      HealthChecker
	version   string
	server    *http.Server
}

// New creates an ops server with the given dependencies.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Collector == nil {
		return nil, fmt.Errorf("collector is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		collector: deps.Collector,
		broker:    deps.Broker,
		sink:      deps.Sink,
		version:   deps.Version,
	}, nil
}

// Start launches the HTTP listener in a background goroutine.
//
// Returns:
//   - error: never currently; listener failures are logged
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		s.logger.Info("ops API listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ops API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("ops API shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down ops API: %w", err)
	}
	return nil
}
