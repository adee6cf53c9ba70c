package api

import (
	"net/http"

	"github.com/shohag/msgboard/internal/storage"
)

type StatsHandler struct {
	store storage.Store
}

func NewStatsHandler(store storage.Store) *StatsHandler {
	return &StatsHandler{store: store}
}

func (h *StatsHandler) Health(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Count(r.Context())
	if err != nil {
		writeError(w, NewAPIError(http.StatusServiceUnavailable, "storage unavailable: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"service":  "msgboard",
		"messages": n,
	})
}
