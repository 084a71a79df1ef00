package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prostudio/cortexstore/internal/errors"
	"github.com/prostudio/cortexstore/pkg/types"
)

// IngestRequest represents a columnar ingest request. Values arrive as JSON,
// so numbers decode as float64 and integer columns are inferred only from
// whole-number samples on the Go side of the connectorless path.
type IngestRequest struct {
	Columns map[string][]interface{} `json:"columns"`
	Tier    string                   `json:"tier,omitempty"`
}

// IngestResponse represents the ingest response.
type IngestResponse struct {
	Rows      int    `json:"rows"`
	Tier      string `json:"tier"`
	RequestID string `json:"request_id"`
}

// IngestHandler handles POST /v1/ingest requests.
type IngestHandler struct {
	store Store
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(store Store) *IngestHandler {
	return &IngestHandler{store: store}
}

// ServeHTTP handles the ingest HTTP request.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}
	if len(req.Columns) == 0 {
		writeError(w, http.StatusBadRequest, "columns must not be empty", requestID)
		return
	}

	if err := h.store.Ingest(r.Context(), req.Columns, types.Tier(req.Tier)); err != nil {
		writeStoreError(w, err, requestID)
		return
	}

	rows := 0
	for _, values := range req.Columns {
		rows = len(values)
		break
	}
	tier := req.Tier
	if tier == "" {
		tier = string(types.TierHot)
	}

	writeJSON(w, http.StatusOK, IngestResponse{
		Rows:      rows,
		Tier:      tier,
		RequestID: requestID,
	})
}

// writeStoreError maps store error categories onto HTTP status codes.
func writeStoreError(w http.ResponseWriter, err error, requestID string) {
	status := http.StatusInternalServerError
	switch errors.GetCategory(err) {
	case errors.ErrCategoryValidation, errors.ErrCategoryQuery:
		status = http.StatusBadRequest
	}
	writeError(w, status, err.Error(), requestID)
}
