package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/juba-labs/hornwatch/internal/models"
)

// EventsHandler serves stored events by cluster hash.
type EventsHandler struct {
	Events *models.EventStore
}

// GetByHash handles GET /api/events/{hash}.
func (h *EventsHandler) GetByHash(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	if hash == "" {
		http.NotFound(w, r)
		return
	}

	ev, err := h.Events.GetByClusterHash(r.Context(), hash)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if ev == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event not found"})
		return
	}

	writeJSON(w, http.StatusOK, ev)
}
