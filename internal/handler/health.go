package handler

import (
	"net/http"
)

// ReadinessChecker reports whether a dependency is ready.
type ReadinessChecker interface {
	Ready() bool
}

// ConnectionChecker reports whether a connection is up.
type ConnectionChecker interface {
	IsConnected() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	model   ReadinessChecker
	journal ConnectionChecker
}

// NewHealthHandler creates a new health handler. journal may be nil when
// the journal is disabled.
func NewHealthHandler(model ReadinessChecker, journal ConnectionChecker) *HealthHandler {
	return &HealthHandler{
		model:   model,
		journal: journal,
	}
}

// Health handles GET /health. It succeeds only once the text generator has
// finished loading.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.model.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "loading",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"agent":  "Titi Loaded",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.model.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "text generator loading",
		})
		return
	}

	if h.journal != nil && !h.journal.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
