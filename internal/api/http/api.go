package http

import (
	"context"
	"net/http"

	"github.com/prostudio/cortexstore/internal/query"
	"github.com/prostudio/cortexstore/internal/store"
	"github.com/prostudio/cortexstore/pkg/types"
)

// Store is the slice of the DataStore facade the HTTP handlers use.
type Store interface {
	Ingest(ctx context.Context, data map[string][]interface{}, tier types.Tier) error
	Query(ctx context.Context, q query.Query) (map[string][]interface{}, error)
	Stats() store.Stats
}

// NewMux builds the full API router with the default middleware chain.
func NewMux(s Store) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/v1/ingest", NewIngestHandler(s))
	mux.Handle("/v1/query", NewQueryHandler(s))
	mux.Handle("/v1/stats", NewStatsHandler(s))
	return DefaultMiddleware()(mux)
}
