// Package store assembles the three tiers, the query executor, and the
// tiering daemon behind a single DataStore facade.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prostudio/cortexstore/internal/cold"
	"github.com/prostudio/cortexstore/internal/errors"
	"github.com/prostudio/cortexstore/internal/hot"
	"github.com/prostudio/cortexstore/internal/observability"
	"github.com/prostudio/cortexstore/internal/query"
	"github.com/prostudio/cortexstore/internal/schema"
	"github.com/prostudio/cortexstore/internal/storage"
	"github.com/prostudio/cortexstore/internal/tiering"
	"github.com/prostudio/cortexstore/internal/warm"
	"github.com/prostudio/cortexstore/pkg/types"
)

// Options configures a DataStore.
type Options struct {
	// WarmDir is the warm tier's chunk directory.
	WarmDir string

	// ColdDir is the cold tier's archive directory.
	ColdDir string

	// Remote replicates cold archives to object storage when non-nil.
	Remote storage.ObjectStorage

	// CacheEntries bounds the query result cache; zero means unbounded.
	CacheEntries int

	// StatsWindow is the retention window for query access statistics.
	StatsWindow time.Duration

	// Tiering configures the background migration daemon.
	Tiering tiering.Config
}

// Stats is a point-in-time snapshot across all tiers. Every field is
// present even when a tier is empty.
type Stats struct {
	HotRows         int64   `json:"hot_rows"`
	HotMemoryBytes  int64   `json:"hot_memory_bytes"`
	HotColumns      int     `json:"hot_columns"`
	WarmRows        int64   `json:"warm_rows"`
	WarmDiskBytes   int64   `json:"warm_disk_bytes"`
	WarmRatio       float64 `json:"warm_compression_ratio"`
	ColdRows        int64   `json:"cold_rows"`
	ColdDiskBytes   int64   `json:"cold_disk_bytes"`
	ColdArchives    int     `json:"cold_archives"`
	TotalRows       int64   `json:"total_rows"`
	CacheEntries    int     `json:"cache_entries"`
	CacheHits       uint64  `json:"cache_hits"`
	CacheMisses     uint64  `json:"cache_misses"`
	TieringCycles   int64   `json:"tiering_cycles"`
	MigratedRows    int64   `json:"migrated_rows"`
	TieringDegraded bool    `json:"tiering_degraded"`
}

// DataStore is the tiered columnar store facade.
type DataStore struct {
	registry *schema.Registry
	hotTier  *hot.Tier
	warmTier *warm.Tier
	coldTier *cold.Tier
	executor *query.Executor
	stats    *observability.QueryStats
	daemon   *tiering.Daemon

	mu     sync.Mutex
	closed bool
}

// New builds a DataStore and its tiers. The tiering daemon is constructed
// but not started; call StartTiering.
func New(opts Options) (*DataStore, error) {
	if opts.WarmDir == "" || opts.ColdDir == "" {
		return nil, errors.NewValidationError(errors.CodeUnexpected, "store requires warm and cold directories")
	}
	if opts.StatsWindow <= 0 {
		opts.StatsWindow = time.Hour
	}

	registry := schema.NewRegistry()
	hotTier := hot.NewTier(registry)

	warmTier, err := warm.NewTier(opts.WarmDir)
	if err != nil {
		return nil, fmt.Errorf("store: opening warm tier: %w", err)
	}
	coldTier, err := cold.NewTier(opts.ColdDir, opts.Remote)
	if err != nil {
		return nil, fmt.Errorf("store: opening cold tier: %w", err)
	}

	queryStats := observability.NewQueryStats(opts.StatsWindow)
	cache := query.NewResultCache(opts.CacheEntries)
	executor := query.NewExecutor(hotTier, warmTier, cache, queryStats)

	ds := &DataStore{
		registry: registry,
		hotTier:  hotTier,
		warmTier: warmTier,
		coldTier: coldTier,
		executor: executor,
		stats:    queryStats,
	}
	ds.daemon = tiering.NewDaemon(opts.Tiering, hotTier, warmTier, func(columns []string) {
		cache.InvalidateColumns(columns)
	})
	return ds, nil
}

// RegisterColumn pre-declares a column schema ahead of ingestion.
func (s *DataStore) RegisterColumn(cs types.ColumnSchema) error {
	return s.hotTier.AddColumn(cs)
}

// Registry exposes the shared schema registry.
func (s *DataStore) Registry() *schema.Registry {
	return s.registry
}

// Ingest writes one columnar batch to the named tier. An empty tier name
// means hot. Cached query results touching the ingested columns are
// invalidated before Ingest returns.
func (s *DataStore) Ingest(ctx context.Context, data map[string][]interface{}, tier types.Tier) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.NewValidationError(errors.CodeEmptyBatch, "ingest batch has no columns")
	}
	if tier == "" {
		tier = types.TierHot
	}

	var err error
	switch tier {
	case types.TierHot:
		err = s.hotTier.BatchInsert(data)
	case types.TierWarm:
		err = s.warmTier.BatchInsert(data)
	case types.TierCold:
		err = s.coldTier.Archive(ctx, data)
	default:
		return errors.NewValidationError(errors.CodeUnknownTier,
			fmt.Sprintf("unknown tier %q", tier))
	}
	if err != nil {
		return err
	}

	columns := make([]string, 0, len(data))
	for name := range data {
		columns = append(columns, name)
	}
	s.executor.Cache().InvalidateColumns(columns)
	return nil
}

// Query evaluates a query against the hot and warm tiers.
func (s *DataStore) Query(ctx context.Context, q query.Query) (map[string][]interface{}, error) {
	return s.executor.Execute(ctx, q)
}

// QueryStats exposes column access frequencies.
func (s *DataStore) QueryStats() *observability.QueryStats {
	return s.stats
}

// Stats returns a snapshot across every tier. It never fails; empty tiers
// report zeroes.
func (s *DataStore) Stats() Stats {
	hotRows, hotMem, hotCols := s.hotTier.Stats()
	warmRows, warmDisk, warmRatio := s.warmTier.Stats()
	coldRows, coldDisk, archives := s.coldTier.Stats()
	hits, misses := s.executor.Cache().Stats()
	cycles, migrated, lastErr := s.daemon.Stats()

	return Stats{
		HotRows:         hotRows,
		HotMemoryBytes:  hotMem,
		HotColumns:      hotCols,
		WarmRows:        warmRows,
		WarmDiskBytes:   warmDisk,
		WarmRatio:       warmRatio,
		ColdRows:        coldRows,
		ColdDiskBytes:   coldDisk,
		ColdArchives:    archives,
		TotalRows:       hotRows + warmRows + coldRows,
		CacheEntries:    s.executor.Cache().Len(),
		CacheHits:       hits,
		CacheMisses:     misses,
		TieringCycles:   cycles,
		MigratedRows:    migrated,
		TieringDegraded: lastErr != nil,
	}
}

// StartTiering launches the background migration daemon.
func (s *DataStore) StartTiering(ctx context.Context) error {
	return s.daemon.Start(ctx)
}

// MigrateNow runs one migration cycle synchronously.
func (s *DataStore) MigrateNow(ctx context.Context) {
	s.daemon.RunOnce(ctx)
}

// Close stops the tiering daemon. Tier data is durable on disk already;
// closing is idempotent.
func (s *DataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.daemon.Stop()
}
