package query

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spaolacci/murmur3"

	"github.com/prostudio/cortexstore/internal/errors"
	"github.com/prostudio/cortexstore/internal/observability"
)

// HotSource materializes in-memory column data.
type HotSource interface {
	Materialize(columns []string) map[string][]interface{}
}

// WarmSource materializes compressed on-disk column data.
type WarmSource interface {
	Materialize(columns []string) (map[string][]interface{}, error)
}

// Query describes one columnar read: which columns to project, which
// predicates to apply, and whether the warm tier participates.
type Query struct {
	Select      []string    `json:"select"`
	From        string      `json:"from,omitempty"`
	Where       []Predicate `json:"where,omitempty"`
	IncludeWarm bool        `json:"include_warm,omitempty"`
}

// Signature returns a stable hash of the query's normalized form. Queries
// differing only in select order share a signature.
func (q Query) Signature() string {
	sel := append([]string(nil), q.Select...)
	sort.Strings(sel)

	normalized := Query{
		Select:      sel,
		From:        q.From,
		Where:       q.Where,
		IncludeWarm: q.scansWarm(),
	}
	payload, err := json.Marshal(normalized)
	if err != nil {
		// Query fields are all JSON-encodable; this only trips on exotic
		// predicate values, which then simply bypass the cache.
		return fmt.Sprintf("raw:%v", normalized)
	}
	h1, h2 := murmur3.Sum128(payload)
	return fmt.Sprintf("%016x%016x", h1, h2)
}

func (q Query) scansWarm() bool {
	return q.IncludeWarm || q.From == "warm"
}

// Executor evaluates queries against the hot and warm tiers with a
// signature-keyed result cache in front.
type Executor struct {
	hot   HotSource
	warm  WarmSource
	cache *ResultCache
	stats *observability.QueryStats
}

// NewExecutor wires an executor over the two queryable tiers. stats may be
// nil to disable access tracking.
func NewExecutor(hot HotSource, warm WarmSource, cache *ResultCache, stats *observability.QueryStats) *Executor {
	return &Executor{hot: hot, warm: warm, cache: cache, stats: stats}
}

// Cache exposes the executor's result cache so the owning store can
// invalidate entries on ingest.
func (e *Executor) Cache() *ResultCache {
	return e.cache
}

// Execute runs a query. The hot tier is always consulted; the warm tier is
// scanned when the query asks for it or when the hot tier returns no rows.
// Selected columns absent from every tier come back as empty slices.
func (e *Executor) Execute(ctx context.Context, q Query) (map[string][]interface{}, error) {
	if len(q.Select) == 0 {
		return nil, errors.NewQueryError(errors.CodeInvalidPredicate, "query selects no columns")
	}
	for _, p := range q.Where {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.record(q)

	signature := q.Signature()
	if cached, ok := e.cache.Get(signature); ok {
		return cached, nil
	}

	touched := touchedColumns(q)

	result, hotRows, err := e.scanTier(tierData(e.hot.Materialize(touched)), q)
	if err != nil {
		return nil, err
	}

	if q.scansWarm() || hotRows == 0 {
		warmData, err := e.warm.Materialize(touched)
		if err != nil {
			return nil, err
		}
		warmResult, _, err := e.scanTier(warmData, q)
		if err != nil {
			return nil, err
		}
		for _, name := range q.Select {
			result[name] = append(result[name], warmResult[name]...)
		}
	}

	e.cache.Put(signature, result, touched)
	return result, nil
}

// scanTier filters one tier's materialized data and projects the selected
// columns. Returns the projected result and the surviving row count.
func (e *Executor) scanTier(data map[string][]interface{}, q Query) (map[string][]interface{}, int, error) {
	rows := 0
	for _, values := range data {
		if len(values) > rows {
			rows = len(values)
		}
	}

	mask, err := evaluateMask(q.Where, data, rows)
	if err != nil {
		return nil, 0, err
	}

	survived := 0
	for _, keep := range mask {
		if keep {
			survived++
		}
	}

	result := make(map[string][]interface{}, len(q.Select))
	for _, name := range q.Select {
		values, ok := data[name]
		if !ok {
			result[name] = []interface{}{}
			continue
		}
		result[name] = applyMask(values, mask)
	}
	return result, survived, nil
}

func (e *Executor) record(q Query) {
	if e.stats == nil {
		return
	}
	for _, name := range q.Select {
		e.stats.RecordSelect(name)
	}
	for _, p := range q.Where {
		e.stats.RecordPredicate(p.Column, p.Op)
	}
}

// touchedColumns is the union of selected and predicate columns, sorted.
func touchedColumns(q Query) []string {
	seen := make(map[string]struct{}, len(q.Select)+len(q.Where))
	for _, name := range q.Select {
		seen[name] = struct{}{}
	}
	for _, p := range q.Where {
		seen[p.Column] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func tierData(data map[string][]interface{}) map[string][]interface{} {
	if data == nil {
		return map[string][]interface{}{}
	}
	return data
}
