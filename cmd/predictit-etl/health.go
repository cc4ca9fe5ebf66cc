package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/predictit-etl/internal/scheduler"
	"github.com/rickgao/predictit-etl/internal/version"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type statusSource interface {
	Status() scheduler.Status
}

// newHealthHandler reports warehouse connectivity and the last scheduled run.
// An unreachable warehouse is unhealthy; a failed last run is degraded.
func newHealthHandler(db pinger, sched statusSource, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Version    string         `json:"version"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Version,
			Components: make(map[string]any),
		}

		if err := db.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["warehouse"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["warehouse"] = "connected"
		}

		st := sched.Status()
		health.Components["scheduler"] = st
		if !st.Healthy() && health.Status == "healthy" {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(health); err != nil {
			logger.Warn("write health response", "error", err)
		}
	})

	return mux
}
