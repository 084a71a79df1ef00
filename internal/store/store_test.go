package store

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prostudio/cortexstore/internal/errors"
	"github.com/prostudio/cortexstore/internal/query"
	"github.com/prostudio/cortexstore/pkg/types"
)

func newTestStore(t *testing.T) *DataStore {
	t.Helper()
	ds, err := New(Options{
		WarmDir: t.TempDir(),
		ColdDir: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func TestIngestDefaultsToHot(t *testing.T) {
	ds := newTestStore(t)

	err := ds.Ingest(context.Background(), map[string][]interface{}{
		"entity_id": {"a", "b"},
	}, "")
	require.NoError(t, err)

	stats := ds.Stats()
	assert.Equal(t, int64(2), stats.HotRows)
	assert.Equal(t, int64(2), stats.TotalRows)
}

func TestIngestUnknownTier(t *testing.T) {
	ds := newTestStore(t)

	err := ds.Ingest(context.Background(), map[string][]interface{}{
		"entity_id": {"a"},
	}, "lukewarm")
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnknownTier, errors.GetCode(err))
}

func TestIngestEmptyBatch(t *testing.T) {
	ds := newTestStore(t)

	err := ds.Ingest(context.Background(), map[string][]interface{}{}, types.TierHot)
	require.Error(t, err)
	assert.Equal(t, errors.CodeEmptyBatch, errors.GetCode(err))
}

func TestIngestWarmAndCold(t *testing.T) {
	ds := newTestStore(t)

	require.NoError(t, ds.Ingest(context.Background(), map[string][]interface{}{
		"score": {1.0, 2.0},
	}, types.TierWarm))
	require.NoError(t, ds.Ingest(context.Background(), map[string][]interface{}{
		"score": {3.0, 4.0, 5.0},
	}, types.TierCold))

	stats := ds.Stats()
	assert.Equal(t, int64(2), stats.WarmRows)
	assert.Equal(t, int64(3), stats.ColdRows)
	assert.Equal(t, 1, stats.ColdArchives)
	assert.Equal(t, int64(5), stats.TotalRows)
}

func TestQueryAcrossTiers(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, ds.Ingest(ctx, map[string][]interface{}{
		"entity_id": {"warm1"},
		"score":     {0.9},
	}, types.TierWarm))
	require.NoError(t, ds.Ingest(ctx, map[string][]interface{}{
		"entity_id": {"hot1"},
		"score":     {0.7},
	}, types.TierHot))

	result, err := ds.Query(ctx, query.Query{
		Select:      []string{"entity_id"},
		Where:       []query.Predicate{{Column: "score", Op: query.OpGt, Value: 0.5}},
		IncludeWarm: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"hot1", "warm1"}, result["entity_id"])
}

func TestIngestInvalidatesCachedQueries(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()
	q := query.Query{Select: []string{"entity_id"}}

	require.NoError(t, ds.Ingest(ctx, map[string][]interface{}{
		"entity_id": {"a"},
	}, types.TierHot))

	first, err := ds.Query(ctx, q)
	require.NoError(t, err)
	require.Len(t, first["entity_id"], 1)

	require.NoError(t, ds.Ingest(ctx, map[string][]interface{}{
		"entity_id": {"b"},
	}, types.TierHot))

	second, err := ds.Query(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b"}, second["entity_id"])
}

func TestMigrateNowMovesAgedRowsAndQueriesStillSeeThem(t *testing.T) {
	ds, err := New(Options{
		WarmDir: t.TempDir(),
		ColdDir: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })
	ctx := context.Background()

	base := time.Now()
	ds.hotTier.SetClock(func() time.Time { return base })
	require.NoError(t, ds.Ingest(ctx, map[string][]interface{}{
		"entity_id": {"a", "b", "c"},
	}, types.TierHot))
	ds.hotTier.SetClock(func() time.Time { return base.Add(2 * time.Minute) })

	ds.MigrateNow(ctx)

	stats := ds.Stats()
	assert.Equal(t, int64(0), stats.HotRows)
	assert.Equal(t, int64(3), stats.WarmRows)
	assert.Equal(t, int64(3), stats.TotalRows)

	result, err := ds.Query(ctx, query.Query{Select: []string{"entity_id"}})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b", "c"}, result["entity_id"])
}

func TestStatsNeverFailsOnEmptyStore(t *testing.T) {
	ds := newTestStore(t)

	stats := ds.Stats()
	assert.Zero(t, stats.TotalRows)
	assert.Zero(t, stats.WarmRatio)
	assert.Zero(t, stats.CacheEntries)
	assert.False(t, stats.TieringDegraded)
}

func TestTotalRowsConservedAcrossPlacement(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("total rows equals sum of ingested batch sizes", prop.ForAll(
		func(sizes []int, tierPicks []int) bool {
			ds, err := New(Options{WarmDir: t.TempDir(), ColdDir: t.TempDir()})
			if err != nil {
				return false
			}
			defer ds.Close()

			tiers := []types.Tier{types.TierHot, types.TierWarm, types.TierCold}
			expected := int64(0)
			for i, size := range sizes {
				if size <= 0 {
					continue
				}
				values := make([]interface{}, size)
				for j := range values {
					values[j] = float64(j)
				}
				tier := tiers[tierPicks[i%len(tierPicks)]%len(tiers)]
				if err := ds.Ingest(context.Background(), map[string][]interface{}{
					"metric": values,
				}, tier); err != nil {
					return false
				}
				expected += int64(size)
			}
			return ds.Stats().TotalRows == expected
		},
		gen.SliceOfN(5, gen.IntRange(1, 40)),
		gen.SliceOfN(5, gen.IntRange(0, 2)),
	))

	properties.TestingRun(t)
}
