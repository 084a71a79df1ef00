// Package connector adapts upstream signal-mesh and entity-graph feeds
// into columnar batches for the store.
package connector

import (
	"context"

	"github.com/prostudio/cortexstore/pkg/types"
)

// Ingester is the slice of the store facade connectors need: schema
// registration at construction and batch ingestion afterwards.
type Ingester interface {
	RegisterColumn(schema types.ColumnSchema) error
	Ingest(ctx context.Context, data map[string][]interface{}, tier types.Tier) error
}
