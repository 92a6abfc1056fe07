package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"liaptui/internal/service"
)

// QueueHandler exposes message queue maintenance.
type QueueHandler struct {
	queues *service.MessageQueueService
}

func NewQueueHandler(queues *service.MessageQueueService) *QueueHandler {
	return &QueueHandler{queues: queues}
}

// Stats handles GET /v1/rooms/{id}/queues
func (h *QueueHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queues.GetQueueStats(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Cleanup handles POST /v1/rooms/{id}/queues/cleanup?maxAge=30m
func (h *QueueHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	maxAge, err := durationParam(r, "maxAge")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid maxAge")
		return
	}

	removed, err := h.queues.CleanupOldMessages(r.Context(), mux.Vars(r)["id"], maxAge)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// Prioritize handles POST /v1/rooms/{id}/queues/{player}/prioritize
func (h *QueueHandler) Prioritize(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.queues.PrioritizeCriticalMessages(r.Context(), vars["id"], vars["player"]); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
