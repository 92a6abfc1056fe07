package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"liaptui/internal/service"
)

// ConnectionHandler exposes connection health and cleanup.
type ConnectionHandler struct {
	reconnect *service.ReconnectionService
}

func NewConnectionHandler(reconnect *service.ReconnectionService) *ConnectionHandler {
	return &ConnectionHandler{reconnect: reconnect}
}

// Health handles GET /v1/rooms/{id}/connections/health. Reports may be a
// couple of seconds old.
func (h *ConnectionHandler) Health(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]
	report, err := h.reconnect.CachedConnectionHealth(r.Context(), roomID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roomId":      roomID,
		"connections": report,
	})
}

// Cleanup handles POST /v1/rooms/{id}/connections/cleanup?timeout=10m
func (h *ConnectionHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	timeout, err := durationParam(r, "timeout")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timeout")
		return
	}

	removed, err := h.reconnect.CleanupDisconnectedPlayers(r.Context(), mux.Vars(r)["id"], timeout)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
