package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/deusflow/inkpost/internal/metrics"
)

func newMonitorRouter(m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		stats := m.GetStats()

		status := http.StatusOK
		body := map[string]interface{}{
			"status":     "ok",
			"last_run":   stats["last_run_time"],
			"last_error": stats["last_error"],
		}
		if !m.Healthy() {
			status = http.StatusServiceUnavailable
			body["status"] = "error"
		}
		writeJSON(w, status, body)
	})

	r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, m.GetStats())
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
