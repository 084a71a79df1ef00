package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prostudio/cortexstore/internal/query"
)

// QueryRequest represents a query request.
type QueryRequest struct {
	Select      []string          `json:"select"`
	From        string            `json:"from,omitempty"`
	Where       []query.Predicate `json:"where,omitempty"`
	IncludeWarm bool              `json:"include_warm,omitempty"`
}

// QueryResponse represents the query response.
type QueryResponse struct {
	Columns   map[string][]interface{} `json:"columns"`
	Rows      int                      `json:"rows"`
	RequestID string                   `json:"request_id"`
}

// QueryHandler handles POST /v1/query requests.
type QueryHandler struct {
	store Store
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(store Store) *QueryHandler {
	return &QueryHandler{store: store}
}

// ServeHTTP handles the query HTTP request.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}
	if len(req.Select) == 0 {
		writeError(w, http.StatusBadRequest, "select must not be empty", requestID)
		return
	}

	result, err := h.store.Query(r.Context(), query.Query{
		Select:      req.Select,
		From:        req.From,
		Where:       req.Where,
		IncludeWarm: req.IncludeWarm,
	})
	if err != nil {
		writeStoreError(w, err, requestID)
		return
	}

	rows := 0
	for _, values := range result {
		if len(values) > rows {
			rows = len(values)
		}
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Columns:   result,
		Rows:      rows,
		RequestID: requestID,
	})
}
