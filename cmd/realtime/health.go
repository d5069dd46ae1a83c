package main

import (
	"encoding/json"
	"net/http"

	"github.com/uday68/commandgrid-sub003/internal/connection"
	"github.com/uday68/commandgrid-sub003/internal/model"
	"github.com/uday68/commandgrid-sub003/internal/monitor"
	"github.com/uday68/commandgrid-sub003/internal/realtime"
)

// newHealthHandler creates the HTTP handler for health checks and metrics.
func newHealthHandler(conn *connection.Manager, rt *realtime.Manager, mon *monitor.Monitor, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		cs := conn.Stats()
		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status: "healthy",
			Components: map[string]any{
				"network": map[string]bool{"online": mon.Online()},
				"connection": map[string]any{
					"state":    cs.State,
					"rooms":    cs.Rooms,
					"pending":  cs.Pending,
					"attempts": cs.Attempts,
					"connects": cs.Connects,
				},
				"offline_queue": rt.Stats(),
			},
		}

		switch {
		case cs.State == model.StateDisconnected:
			health.Status = "unhealthy"
		case cs.State != model.StateConnected || cs.Pending > 0:
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/pending", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"messages":   conn.PendingMessages(),
			"operations": rt.Pending(),
		})
	})

	return mux
}
