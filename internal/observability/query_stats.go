// Package observability tracks query access frequency per column, feeding
// tiering heuristics and performance monitoring.
package observability

import (
	"sort"
	"sync"
	"time"
)

// QueryStats tracks how often columns appear in predicates and selections.
type QueryStats struct {
	mu            sync.RWMutex
	predicateFreq map[string]*ColumnStats
	selectFreq    map[string]*ColumnStats
	window        time.Duration
}

// ColumnStats holds access statistics for a single column.
type ColumnStats struct {
	Column    string
	Frequency int64
	LastSeen  time.Time
	Operators map[string]int // operator -> count (e.g. "eq" -> 5, "gt" -> 2)
}

// NewQueryStats creates a tracker pruning entries older than window.
func NewQueryStats(window time.Duration) *QueryStats {
	return &QueryStats{
		predicateFreq: make(map[string]*ColumnStats),
		selectFreq:    make(map[string]*ColumnStats),
		window:        window,
	}
}

// RecordPredicate records a predicate access for a column.
// This method is O(1) and thread-safe.
func (q *QueryStats) RecordPredicate(column, operator string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats, exists := q.predicateFreq[column]
	if !exists {
		stats = &ColumnStats{
			Column:    column,
			Operators: make(map[string]int),
		}
		q.predicateFreq[column] = stats
	}

	stats.Frequency++
	stats.LastSeen = time.Now()
	stats.Operators[operator]++
}

// RecordSelect records a column appearing in a query's selection list.
// This method is O(1) and thread-safe.
func (q *QueryStats) RecordSelect(column string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats, exists := q.selectFreq[column]
	if !exists {
		stats = &ColumnStats{
			Column:    column,
			Operators: make(map[string]int),
		}
		q.selectFreq[column] = stats
	}

	stats.Frequency++
	stats.LastSeen = time.Now()
}

// GetTopPredicates returns the top N predicate columns by frequency.
// Returns a copy of the stats sorted by frequency (descending).
func (q *QueryStats) GetTopPredicates(n int) []ColumnStats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return topN(q.predicateFreq, n)
}

// GetTopSelects returns the top N selected columns by frequency.
// Returns a copy of the stats sorted by frequency (descending).
func (q *QueryStats) GetTopSelects(n int) []ColumnStats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return topN(q.selectFreq, n)
}

func topN(freq map[string]*ColumnStats, n int) []ColumnStats {
	if n <= 0 || len(freq) == 0 {
		return []ColumnStats{}
	}

	stats := make([]ColumnStats, 0, len(freq))
	for _, s := range freq {
		// Deep copy to prevent external modification.
		statsCopy := ColumnStats{
			Column:    s.Column,
			Frequency: s.Frequency,
			LastSeen:  s.LastSeen,
			Operators: make(map[string]int),
		}
		for op, count := range s.Operators {
			statsCopy.Operators[op] = count
		}
		stats = append(stats, statsCopy)
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Frequency > stats[j].Frequency
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Prune removes entries where time.Since(LastSeen) > window.
// This should be called periodically (e.g., every 5 minutes).
func (q *QueryStats) Prune() {
	q.mu.Lock()
	defer q.mu.Unlock()

	threshold := time.Now().Add(-q.window)

	for col, stats := range q.predicateFreq {
		if stats.LastSeen.Before(threshold) {
			delete(q.predicateFreq, col)
		}
	}
	for col, stats := range q.selectFreq {
		if stats.LastSeen.Before(threshold) {
			delete(q.selectFreq, col)
		}
	}
}
