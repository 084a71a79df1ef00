package http

import (
	"net/http"
)

// StatsHandler handles GET /v1/stats requests.
type StatsHandler struct {
	store Store
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(store Store) *StatsHandler {
	return &StatsHandler{store: store}
}

// ServeHTTP handles the stats HTTP request.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	writeJSON(w, http.StatusOK, h.store.Stats())
}
