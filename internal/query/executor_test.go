package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prostudio/cortexstore/internal/errors"
	"github.com/prostudio/cortexstore/internal/observability"
)

type fakeHot struct {
	data  map[string][]interface{}
	scans int
}

func (f *fakeHot) Materialize(columns []string) map[string][]interface{} {
	f.scans++
	out := make(map[string][]interface{}, len(columns))
	for _, name := range columns {
		if values, ok := f.data[name]; ok {
			out[name] = values
		}
	}
	return out
}

type fakeWarm struct {
	data  map[string][]interface{}
	scans int
	err   error
}

func (f *fakeWarm) Materialize(columns []string) (map[string][]interface{}, error) {
	f.scans++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string][]interface{}, len(columns))
	for _, name := range columns {
		if values, ok := f.data[name]; ok {
			out[name] = values
		}
	}
	return out, nil
}

func newTestExecutor(hot *fakeHot, warm *fakeWarm) *Executor {
	return NewExecutor(hot, warm, NewResultCache(0), observability.NewQueryStats(time.Hour))
}

func TestExecutePredicateFilter(t *testing.T) {
	hot := &fakeHot{data: map[string][]interface{}{
		"entity_id":       {"a", "b", "c", "d"},
		"coherence_score": {0.95, 0.42, 0.88, 0.10},
	}}
	e := newTestExecutor(hot, &fakeWarm{})

	result, err := e.Execute(context.Background(), Query{
		Select: []string{"entity_id"},
		Where:  []Predicate{{Column: "coherence_score", Op: OpGt, Value: 0.8}},
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "c"}, result["entity_id"])
}

func TestExecuteConjunctivePredicates(t *testing.T) {
	hot := &fakeHot{data: map[string][]interface{}{
		"entity_id": {"a", "b", "c"},
		"region":    {"us", "eu", "us"},
		"score":     {int64(5), int64(9), int64(9)},
	}}
	e := newTestExecutor(hot, &fakeWarm{})

	result, err := e.Execute(context.Background(), Query{
		Select: []string{"entity_id"},
		Where: []Predicate{
			{Column: "region", Op: OpEq, Value: "us"},
			{Column: "score", Op: OpGe, Value: 9},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"c"}, result["entity_id"])
}

func TestExecuteMissingSelectColumn(t *testing.T) {
	hot := &fakeHot{data: map[string][]interface{}{
		"entity_id": {"a"},
	}}
	e := newTestExecutor(hot, &fakeWarm{})

	result, err := e.Execute(context.Background(), Query{
		Select: []string{"entity_id", "no_such_column"},
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a"}, result["entity_id"])
	assert.Equal(t, []interface{}{}, result["no_such_column"])
}

func TestExecuteMissingPredicateColumnMatchesNothing(t *testing.T) {
	hot := &fakeHot{data: map[string][]interface{}{
		"entity_id": {"a", "b"},
	}}
	e := newTestExecutor(hot, &fakeWarm{})

	result, err := e.Execute(context.Background(), Query{
		Select: []string{"entity_id"},
		Where:  []Predicate{{Column: "ghost", Op: OpEq, Value: 1}},
	})
	require.NoError(t, err)
	assert.Empty(t, result["entity_id"])
}

func TestExecuteNullRowsNeverMatch(t *testing.T) {
	hot := &fakeHot{data: map[string][]interface{}{
		"entity_id": {"a", "b", "c"},
		"score":     {0.5, nil, 0.9},
	}}
	e := newTestExecutor(hot, &fakeWarm{})

	result, err := e.Execute(context.Background(), Query{
		Select: []string{"entity_id"},
		Where:  []Predicate{{Column: "score", Op: OpGt, Value: 0.0}},
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "c"}, result["entity_id"])
}

func TestExecuteWarmFallbackWhenHotEmpty(t *testing.T) {
	warm := &fakeWarm{data: map[string][]interface{}{
		"entity_id": {"w1", "w2"},
	}}
	e := newTestExecutor(&fakeHot{}, warm)

	result, err := e.Execute(context.Background(), Query{
		Select: []string{"entity_id"},
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"w1", "w2"}, result["entity_id"])
	assert.Equal(t, 1, warm.scans)
}

func TestExecuteHotThenWarmConcatenation(t *testing.T) {
	hot := &fakeHot{data: map[string][]interface{}{
		"entity_id": {"h1"},
		"score":     {0.9},
	}}
	warm := &fakeWarm{data: map[string][]interface{}{
		"entity_id": {"w1", "w2"},
		"score":     {0.95, 0.1},
	}}
	e := newTestExecutor(hot, warm)

	result, err := e.Execute(context.Background(), Query{
		Select:      []string{"entity_id"},
		Where:       []Predicate{{Column: "score", Op: OpGt, Value: 0.5}},
		IncludeWarm: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"h1", "w1"}, result["entity_id"])
}

func TestExecuteWarmNotScannedWhenHotHasRows(t *testing.T) {
	hot := &fakeHot{data: map[string][]interface{}{
		"entity_id": {"h1"},
	}}
	warm := &fakeWarm{data: map[string][]interface{}{
		"entity_id": {"w1"},
	}}
	e := newTestExecutor(hot, warm)

	result, err := e.Execute(context.Background(), Query{
		Select: []string{"entity_id"},
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"h1"}, result["entity_id"])
	assert.Zero(t, warm.scans)
}

func TestExecuteCacheHitSkipsScan(t *testing.T) {
	hot := &fakeHot{data: map[string][]interface{}{
		"entity_id": {"a", "b"},
	}}
	e := newTestExecutor(hot, &fakeWarm{})
	q := Query{Select: []string{"entity_id"}}

	first, err := e.Execute(context.Background(), q)
	require.NoError(t, err)
	second, err := e.Execute(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, hot.scans)
	hits, misses := e.Cache().Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestExecuteCacheInvalidationReflectsNewData(t *testing.T) {
	hot := &fakeHot{data: map[string][]interface{}{
		"entity_id": {"a"},
	}}
	e := newTestExecutor(hot, &fakeWarm{})
	q := Query{Select: []string{"entity_id"}}

	_, err := e.Execute(context.Background(), q)
	require.NoError(t, err)

	hot.data["entity_id"] = append(hot.data["entity_id"], "b")
	e.Cache().InvalidateColumns([]string{"entity_id"})

	result, err := e.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b"}, result["entity_id"])
	assert.Equal(t, 2, hot.scans)
}

func TestExecuteUnknownOperator(t *testing.T) {
	e := newTestExecutor(&fakeHot{}, &fakeWarm{})

	_, err := e.Execute(context.Background(), Query{
		Select: []string{"x"},
		Where:  []Predicate{{Column: "x", Op: "like", Value: "a"}},
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnknownOperator, errors.GetCode(err))
}

func TestExecuteEmptySelect(t *testing.T) {
	e := newTestExecutor(&fakeHot{}, &fakeWarm{})

	_, err := e.Execute(context.Background(), Query{})
	assert.Error(t, err)
}

func TestSignatureIgnoresSelectOrder(t *testing.T) {
	a := Query{Select: []string{"x", "y"}}
	b := Query{Select: []string{"y", "x"}}
	c := Query{Select: []string{"x", "y"}, IncludeWarm: true}

	assert.Equal(t, a.Signature(), b.Signature())
	assert.NotEqual(t, a.Signature(), c.Signature())
}

func TestContainsOperator(t *testing.T) {
	hot := &fakeHot{data: map[string][]interface{}{
		"name": {"alpha-node", "beta-node", "gamma"},
	}}
	e := newTestExecutor(hot, &fakeWarm{})

	result, err := e.Execute(context.Background(), Query{
		Select: []string{"name"},
		Where:  []Predicate{{Column: "name", Op: OpContains, Value: "node"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"alpha-node", "beta-node"}, result["name"])
}
