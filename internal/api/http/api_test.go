package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prostudio/cortexstore/internal/query"
	"github.com/prostudio/cortexstore/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ds, err := store.New(store.Options{
		WarmDir: t.TempDir(),
		ColdDir: t.TempDir(),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(NewMux(ds))
	t.Cleanup(func() {
		srv.Close()
		_ = ds.Close()
	})
	return srv
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestIngestThenQuery(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/ingest", IngestRequest{
		Columns: map[string][]interface{}{
			"entity_id": {"a", "b", "c"},
			"score":     {0.9, 0.3, 0.7},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ingest := decodeBody[IngestResponse](t, resp)
	assert.Equal(t, 3, ingest.Rows)
	assert.Equal(t, "hot", ingest.Tier)
	assert.NotEmpty(t, ingest.RequestID)

	resp = postJSON(t, srv.URL+"/v1/query", QueryRequest{
		Select: []string{"entity_id"},
		Where:  []query.Predicate{{Column: "score", Op: "gt", Value: 0.5}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeBody[QueryResponse](t, resp)
	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, []interface{}{"a", "c"}, result.Columns["entity_id"])
}

func TestIngestRejectsEmptyColumns(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/ingest", IngestRequest{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestRejectsUnknownTier(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/ingest", IngestRequest{
		Columns: map[string][]interface{}{"x": {1.0}},
		Tier:    "plasma",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestRejectsRaggedBatch(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/ingest", IngestRequest{
		Columns: map[string][]interface{}{
			"a": {1.0, 2.0},
			"b": {1.0},
		},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueryRejectsUnknownOperator(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/query", QueryRequest{
		Select: []string{"x"},
		Where:  []query.Predicate{{Column: "x", Op: "regex", Value: "a"}},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueryMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/query")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/ingest", IngestRequest{
		Columns: map[string][]interface{}{"metric": {1.0, 2.0}},
		Tier:    "warm",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	statsResp, err := http.Get(srv.URL + "/v1/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, statsResp.StatusCode)
	stats := decodeBody[store.Stats](t, statsResp)
	assert.Equal(t, int64(2), stats.WarmRows)
	assert.Equal(t, int64(2), stats.TotalRows)
}

func TestRequestIDPropagation(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/stats", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-42")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))
}
