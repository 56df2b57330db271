package handlers

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/castwatch/backend/internal/logging"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// respondValue writes the success envelope {key: value}.
func respondValue(ctx context.Context, w http.ResponseWriter, key string, value any) {
	respondJSON(ctx, w, http.StatusOK, map[string]any{key: value})
}

// respondDomainError writes {"error": message} with 200; the payload shape
// alone tells clients the call was refused.
func respondDomainError(ctx context.Context, w http.ResponseWriter, message string) {
	logging.FromContext(ctx).Info("request refused", "reason", message)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"error": message})
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, map[string]string{"error": message})
}
