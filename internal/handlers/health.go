package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/reflecta/reflecta/internal/logging"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	DB Pinger
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	payload := map[string]string{
		"status":   "ok",
		"database": "memory",
	}
	status := http.StatusOK

	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Error("database ping failed", "error", err)
			payload["status"] = "degraded"
			payload["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			payload["database"] = "ok"
		}
	}

	respondJSON(r.Context(), w, status, payload)
}
