package connector

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prostudio/cortexstore/internal/query"
	"github.com/prostudio/cortexstore/internal/store"
)

func newTestStore(t *testing.T) *store.DataStore {
	t.Helper()
	ds, err := store.New(store.Options{
		WarmDir: t.TempDir(),
		ColdDir: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func TestSignalSyncBatch(t *testing.T) {
	ds := newTestStore(t)
	sc, err := NewSignalConnector(ds)
	require.NoError(t, err)

	ts := time.Unix(1700000000, 0)
	err = sc.SyncBatch(context.Background(), []SignalRecord{
		{EntityID: "node-1", State: complex(1, 2), Coherence: 0.92, Timestamp: ts},
		{EntityID: "node-2", State: complex(0.5, -1), Coherence: 0.41, Timestamp: ts},
	})
	require.NoError(t, err)

	result, err := ds.Query(context.Background(), query.Query{
		Select: []string{"entity_id", "coherence_score", "field_state"},
		Where:  []query.Predicate{{Column: "coherence_score", Op: query.OpGt, Value: 0.5}},
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"node-1"}, result["entity_id"])
	assert.Equal(t, []interface{}{complex(1, 2)}, result["field_state"])
}

func TestSignalSyncBatchStampsMissingTimestamps(t *testing.T) {
	ds := newTestStore(t)
	sc, err := NewSignalConnector(ds)
	require.NoError(t, err)

	fixed := time.Unix(1700000000, 500000000)
	sc.now = func() time.Time { return fixed }

	require.NoError(t, sc.SyncBatch(context.Background(), []SignalRecord{
		{EntityID: "node-1", State: 1 + 0i, Coherence: 0.5},
	}))

	result, err := ds.Query(context.Background(), query.Query{Select: []string{"timestamp"}})
	require.NoError(t, err)
	require.Len(t, result["timestamp"], 1)
	assert.InDelta(t, 1700000000.5, result["timestamp"][0], 1e-6)
}

func TestSignalSyncBatchRejectsEmptyEntityID(t *testing.T) {
	ds := newTestStore(t)
	sc, err := NewSignalConnector(ds)
	require.NoError(t, err)

	err = sc.SyncBatch(context.Background(), []SignalRecord{{State: 1, Coherence: 0.5}})
	assert.Error(t, err)
	assert.Equal(t, int64(0), ds.Stats().HotRows)
}

func TestSignalSyncBatchEmptyIsNoop(t *testing.T) {
	ds := newTestStore(t)
	sc, err := NewSignalConnector(ds)
	require.NoError(t, err)

	require.NoError(t, sc.SyncBatch(context.Background(), nil))
	assert.Equal(t, int64(0), ds.Stats().HotRows)
}

func TestFieldDistance(t *testing.T) {
	a := []complex128{1 + 0i, 0 + 1i}

	d, err := FieldDistance(a, a)
	require.NoError(t, err)
	assert.Zero(t, d)

	// Same amplitudes, each element rotated by pi/2.
	b := []complex128{0 + 1i, -1 + 0i}
	d, err = FieldDistance(a, b)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/2, d, 1e-9)

	_, err = FieldDistance(a, []complex128{1})
	assert.Error(t, err)
}

func TestGraphSyncEntities(t *testing.T) {
	ds := newTestStore(t)
	gc, err := NewGraphConnector(ds)
	require.NoError(t, err)

	err = gc.SyncEntities(context.Background(), []GraphEntity{
		{
			ID: "ent-1", Type: "pattern", Signature: "sig-a",
			FractalDimension: 1.6,
			ParentIDs:        []string{"root"},
			ChildIDs:         []string{"ent-2", "ent-3"},
		},
		{ID: "ent-2", Type: "pattern", Signature: "sig-b", FractalDimension: 1.2},
	})
	require.NoError(t, err)

	result, err := ds.Query(context.Background(), query.Query{
		Select: []string{"entity_id", "child_entities"},
		Where:  []query.Predicate{{Column: "fractal_dimension", Op: query.OpGt, Value: 1.5}},
	})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"ent-1"}, result["entity_id"])

	children, err := DecodeLineage(result["child_entities"][0].(string))
	require.NoError(t, err)
	assert.Equal(t, []string{"ent-2", "ent-3"}, children)
}

func TestDecodeLineageEmpty(t *testing.T) {
	ids, err := DecodeLineage("")
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestSignatureSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, SignatureSimilarity("sig-a", "sig-a"))

	s := SignatureSimilarity("sig-a", "sig-b")
	assert.GreaterOrEqual(t, s, 0.0)
	assert.LessOrEqual(t, s, 1.0)
	assert.Equal(t, s, SignatureSimilarity("sig-b", "sig-a"))
}

func TestConnectorsShareEntityIDColumn(t *testing.T) {
	ds := newTestStore(t)

	_, err := NewSignalConnector(ds)
	require.NoError(t, err)
	_, err = NewGraphConnector(ds)
	require.NoError(t, err)
}
