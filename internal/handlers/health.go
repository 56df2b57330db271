package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/castwatch/backend/internal/logging"
)

const healthPingTimeout = 2 * time.Second

// HealthHandler responds with service health information.
type HealthHandler struct {
	DB Pinger
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
		defer cancel()
		if err := h.DB.Ping(pingCtx); err != nil {
			logging.FromContext(ctx).Error("database ping failed", "error", err)
			respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}

	respondValue(ctx, w, "status", "ok")
}
