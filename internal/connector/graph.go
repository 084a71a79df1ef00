package connector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spaolacci/murmur3"

	"github.com/prostudio/cortexstore/pkg/types"
)

// GraphEntity is one node from the entity graph with its lineage.
type GraphEntity struct {
	ID               string
	Type             string
	Signature        string
	FractalDimension float64
	ParentIDs        []string
	ChildIDs         []string
}

// GraphConnector ingests entity-graph nodes. Lineage lists are stored as
// JSON-encoded strings so they ride the dictionary codec; graphs repeat
// the same small parent sets heavily.
type GraphConnector struct {
	store Ingester
}

// NewGraphConnector registers the graph columns and returns the connector.
func NewGraphConnector(store Ingester) (*GraphConnector, error) {
	schemas := []types.ColumnSchema{
		{Name: "entity_id", Type: types.ElementString, Compression: types.CompressionDictionary},
		{Name: "entity_type", Type: types.ElementString, Compression: types.CompressionDictionary},
		{Name: "signature", Type: types.ElementString, Compression: types.CompressionDictionary},
		{Name: "fractal_dimension", Type: types.ElementFloat, Compression: types.CompressionGeneric},
		{Name: "parent_entities", Type: types.ElementString, Compression: types.CompressionDictionary},
		{Name: "child_entities", Type: types.ElementString, Compression: types.CompressionDictionary},
	}
	for _, s := range schemas {
		if err := store.RegisterColumn(s); err != nil {
			return nil, fmt.Errorf("connector: registering %s: %w", s.Name, err)
		}
	}
	return &GraphConnector{store: store}, nil
}

// SyncEntities converts graph nodes to a columnar batch and ingests them
// hot.
func (c *GraphConnector) SyncEntities(ctx context.Context, entities []GraphEntity) error {
	if len(entities) == 0 {
		return nil
	}

	data := map[string][]interface{}{
		"entity_id":         make([]interface{}, len(entities)),
		"entity_type":       make([]interface{}, len(entities)),
		"signature":         make([]interface{}, len(entities)),
		"fractal_dimension": make([]interface{}, len(entities)),
		"parent_entities":   make([]interface{}, len(entities)),
		"child_entities":    make([]interface{}, len(entities)),
	}
	for i, e := range entities {
		parents, err := encodeLineage(e.ParentIDs)
		if err != nil {
			return fmt.Errorf("connector: entity %s parents: %w", e.ID, err)
		}
		children, err := encodeLineage(e.ChildIDs)
		if err != nil {
			return fmt.Errorf("connector: entity %s children: %w", e.ID, err)
		}
		data["entity_id"][i] = e.ID
		data["entity_type"][i] = e.Type
		data["signature"][i] = e.Signature
		data["fractal_dimension"][i] = e.FractalDimension
		data["parent_entities"][i] = parents
		data["child_entities"][i] = children
	}
	return c.store.Ingest(ctx, data, types.TierHot)
}

// DecodeLineage parses a stored lineage cell back into its id list.
func DecodeLineage(cell string) ([]string, error) {
	if cell == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(cell), &ids); err != nil {
		return nil, fmt.Errorf("connector: decoding lineage: %w", err)
	}
	return ids, nil
}

// SignatureSimilarity scores two entity signatures in [0, 1] by hashing
// both and normalizing the hash distance. Equal signatures score 1; the
// score is coarse, a pre-filter ahead of structural comparison.
func SignatureSimilarity(s1, s2 string) float64 {
	h1 := murmur3.Sum32([]byte(s1))
	h2 := murmur3.Sum32([]byte(s2))

	var diff uint32
	if h1 > h2 {
		diff = h1 - h2
	} else {
		diff = h2 - h1
	}
	return 1.0 - float64(diff)/float64(^uint32(0))
}

func encodeLineage(ids []string) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
