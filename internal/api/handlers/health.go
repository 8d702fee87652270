package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hoanghai1803/pressroom/internal/monitor"
	"github.com/hoanghai1803/pressroom/internal/storage"
)

// HealthReporter exposes the most recent integration health sweep.
// *monitor.Monitor implements it.
type HealthReporter interface {
	Last() *monitor.Summary
}

type healthResponse struct {
	Status       string           `json:"status"`
	Integrations *monitor.Summary `json:"integrations"`
}

// Healthz handles GET /healthz. It pings the database and reports the last
// integration sweep, which is null until one has finished.
func Healthz(store *storage.Store, health HealthReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DB().PingContext(r.Context()); err != nil {
			slog.Error("database ping failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}

		resp := healthResponse{Status: "ok"}
		if health != nil {
			resp.Integrations = health.Last()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
