package handler

import (
	"net/http"
	"time"

	natsclient "github.com/capitalize-ai/chat-session-engine/internal/nats"
)

// HealthHandler handles health and readiness endpoints.
type HealthHandler struct {
	natsClient *natsclient.Client
	started    time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(natsClient *natsclient.Client) *HealthHandler {
	return &HealthHandler{
		natsClient: natsClient,
		started:    time.Now(),
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// Ready handles GET /ready. The server cannot serve chat traffic until
// the message log is reachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.natsClient == nil || !h.natsClient.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "message log not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"stream": natsclient.StreamName,
	})
}
