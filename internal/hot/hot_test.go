package hot

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/prostudio/cortexstore/internal/errors"
	"github.com/prostudio/cortexstore/internal/schema"
	"github.com/prostudio/cortexstore/pkg/types"
)

func newTier() *Tier {
	return NewTier(schema.NewRegistry())
}

func TestTier_BatchInsertAndMaterialize(t *testing.T) {
	tier := newTier()

	err := tier.BatchInsert(map[string][]interface{}{
		"id":    {"a", "b", "a"},
		"score": {0.1, 0.9, 0.1},
	})
	require.NoError(t, err)

	result := tier.Materialize([]string{"id", "score"})
	assert.Equal(t, []interface{}{"a", "b", "a"}, result["id"])
	assert.Equal(t, []interface{}{0.1, 0.9, 0.1}, result["score"])
	assert.Equal(t, int64(3), tier.RowCount())

	// Dictionary has exactly two entries after inserting a, b, a.
	assert.Equal(t, 2, tier.DictionarySize("id"))
}

func TestTier_BatchLengthMismatchRejectedBeforeMutation(t *testing.T) {
	tier := newTier()

	err := tier.BatchInsert(map[string][]interface{}{
		"id":    {"a", "b"},
		"score": {0.1},
	})
	require.Error(t, err)
	assert.Equal(t, cerrors.CodeBatchLengthMismatch, cerrors.GetCode(err))
	assert.Equal(t, int64(0), tier.RowCount())
}

func TestTier_TypeMismatchLeavesTierUnchanged(t *testing.T) {
	tier := newTier()
	require.NoError(t, tier.BatchInsert(map[string][]interface{}{
		"score": {0.5},
	}))

	err := tier.BatchInsert(map[string][]interface{}{
		"score": {1.5, "oops"},
	})
	require.Error(t, err)
	assert.Equal(t, cerrors.CodeTypeMismatch, cerrors.GetCode(err))

	assert.Equal(t, int64(1), tier.RowCount())
	assert.Equal(t, []interface{}{0.5}, tier.Materialize([]string{"score"})["score"])
}

func TestTier_MissingColumnMaterializesEmpty(t *testing.T) {
	tier := newTier()
	result := tier.Materialize([]string{"missing_column"})
	assert.Equal(t, []interface{}{}, result["missing_column"])
}

func TestTier_SchemaInferenceOnce(t *testing.T) {
	tier := newTier()
	require.NoError(t, tier.BatchInsert(map[string][]interface{}{
		"id": {"a"},
	}))

	// The column's type is now fixed; numeric values are rejected.
	err := tier.BatchInsert(map[string][]interface{}{
		"id": {42},
	})
	require.Error(t, err)
	assert.Equal(t, cerrors.CodeTypeMismatch, cerrors.GetCode(err))
}

func TestTier_NullableInferredFromFirstBatch(t *testing.T) {
	tier := newTier()
	require.NoError(t, tier.BatchInsert(map[string][]interface{}{
		"score": {0.5, nil, 1.5},
	}))

	result := tier.Materialize([]string{"score"})
	assert.Equal(t, []interface{}{0.5, nil, 1.5}, result["score"])
}

func TestTier_BatchAtomicityUnderConcurrency(t *testing.T) {
	tier := newTier()
	const batches = 50
	const batchSize = 20

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < batches; i++ {
			batch := map[string][]interface{}{
				"a": make([]interface{}, batchSize),
				"b": make([]interface{}, batchSize),
			}
			for j := 0; j < batchSize; j++ {
				batch["a"][j] = i
				batch["b"][j] = i
			}
			assert.NoError(t, tier.BatchInsert(batch))
		}
	}()

	var violation bool
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			result := tier.Materialize([]string{"a", "b"})
			if len(result["a"]) != len(result["b"]) {
				violation = true
				return
			}
			if len(result["a"])%batchSize != 0 {
				violation = true
				return
			}
		}
	}()

	wg.Wait()
	assert.False(t, violation, "a query observed a partially applied batch")
	assert.Equal(t, int64(batches*batchSize), tier.RowCount())
}

func TestTier_AgedDataUsesWallClock(t *testing.T) {
	tier := newTier()

	now := time.Now()
	clock := now
	tier.SetClock(func() time.Time { return clock })

	require.NoError(t, tier.BatchInsert(map[string][]interface{}{"v": {1, 2, 3}}))

	clock = now.Add(2 * time.Hour)
	require.NoError(t, tier.BatchInsert(map[string][]interface{}{"v": {4, 5}}))

	// Only the first batch is older than one hour.
	aged, count := tier.AgedData(time.Hour)
	assert.Equal(t, 3, count)
	assert.Equal(t, []interface{}{int64(1), int64(2), int64(3)}, aged["v"])

	// Nothing aged when everything is recent.
	fresh := newTier()
	require.NoError(t, fresh.BatchInsert(map[string][]interface{}{"v": {1}}))
	data, count := fresh.AgedData(time.Hour)
	assert.Nil(t, data)
	assert.Zero(t, count)
}

func TestTier_EvictCompactsColumns(t *testing.T) {
	tier := newTier()

	batch := map[string][]interface{}{"seq": make([]interface{}, 0, 50000)}
	for i := 0; i < 50000; i++ {
		batch["seq"] = append(batch["seq"], i)
	}
	require.NoError(t, tier.BatchInsert(batch))

	indices := make([]int, 100)
	for i := range indices {
		indices[i] = i
	}
	tier.EvictRows(indices)

	assert.Equal(t, int64(49900), tier.RowCount())
	result := tier.Materialize([]string{"seq"})
	require.Len(t, result["seq"], 49900)
	assert.Equal(t, int64(100), result["seq"][0])
	assert.Equal(t, int64(49999), result["seq"][49899])
}

func TestTier_RowConservationAcrossMigrationSteps(t *testing.T) {
	tier := newTier()

	now := time.Now()
	clock := now
	tier.SetClock(func() time.Time { return clock })

	require.NoError(t, tier.BatchInsert(map[string][]interface{}{"v": {1, 2, 3, 4}}))
	clock = now.Add(time.Hour)
	require.NoError(t, tier.BatchInsert(map[string][]interface{}{"v": {5, 6}}))
	clock = now.Add(3 * time.Hour)

	before := tier.RowCount()
	aged, count := tier.AgedData(90 * time.Minute)
	require.Equal(t, 4, count)
	require.Len(t, aged["v"], 4)

	tier.Evict(count)
	assert.Equal(t, before, tier.RowCount()+int64(count))
	assert.Equal(t, []interface{}{int64(5), int64(6)}, tier.Materialize([]string{"v"})["v"])

	// Remaining batch still ages out later.
	clock = now.Add(5 * time.Hour)
	_, count = tier.AgedData(90 * time.Minute)
	assert.Equal(t, 2, count)
}

func TestTier_StatsTrackMemoryAndColumns(t *testing.T) {
	tier := newTier()
	require.NoError(t, tier.BatchInsert(map[string][]interface{}{
		"id":    {"a"},
		"score": {1.0},
	}))

	rows, memory, columns := tier.Stats()
	assert.Equal(t, int64(1), rows)
	assert.Equal(t, 2, columns)
	assert.Positive(t, memory)
}

func TestTier_LastAccessRecordedOnMaterialize(t *testing.T) {
	tier := newTier()
	require.NoError(t, tier.BatchInsert(map[string][]interface{}{"id": {"a"}}))

	assert.True(t, tier.LastAccess("id").IsZero())
	tier.Materialize([]string{"id"})
	assert.False(t, tier.LastAccess("id").IsZero())
}

func TestTier_ConnectorColumns(t *testing.T) {
	tier := newTier()
	require.NoError(t, tier.AddColumn(types.ColumnSchema{
		Name: "entity_id", Type: types.ElementString, Compression: types.CompressionDictionary,
	}))
	// Re-adding is a no-op.
	require.NoError(t, tier.AddColumn(types.ColumnSchema{
		Name: "entity_id", Type: types.ElementString, Compression: types.CompressionDictionary,
	}))

	_, _, columns := tier.Stats()
	assert.Equal(t, 1, columns)
}
