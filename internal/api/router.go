package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.recoveryMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/devices", s.handleDevices)
		r.Get("/version", s.handleVersion)
	})

	return r
}

// handleHealth actively probes the broker and sink connections. Any
// failing probe degrades the response to 503 with per-dependency detail.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	probe := func(name string, checker HealthChecker) {
		if checker == nil {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
		defer cancel()
		if err := checker.HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			return
		}
		checks[name] = "ok"
	}
	probe("mqtt", s.broker)
	probe("influxdb", s.sink)

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status":  overall,
		"version": s.version,
		"checks":  checks,
	})
}

// handleDevices returns every device's correlation state, serviced by
// the collector loop.
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.collector.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("device snapshot failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "collector unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": snapshots,
		"count":   len(snapshots),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version": s.version,
	})
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}
