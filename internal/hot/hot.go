// Package hot implements the in-memory hot tier: a table of typed columns
// supporting concurrent batch insert and columnar query, with per-batch
// insertion timestamps driving age-based migration.
package hot

import (
	"fmt"
	"sync"
	"time"

	"github.com/prostudio/cortexstore/internal/column"
	"github.com/prostudio/cortexstore/internal/errors"
	"github.com/prostudio/cortexstore/internal/schema"
	"github.com/prostudio/cortexstore/pkg/types"
)

// batchMark records one completed batch insert: how many rows it added and
// when. The marks order matches insertion order, so the aged prefix of the
// tier is the concatenation of the oldest marks.
type batchMark struct {
	rows       int
	insertedAt time.Time
}

// Tier is the in-memory hot tier. One mutex guards the column set and all
// column buffers: a batch insert is all-or-visible with respect to any
// concurrent query, and two concurrent inserts are totally ordered.
type Tier struct {
	registry *schema.Registry

	mu          sync.Mutex
	columns     map[string]*column.Column
	rowCount    int64
	memoryBytes int64
	lastAccess  map[string]time.Time
	batches     []batchMark

	// now is replaceable in tests to drive aging deterministically.
	now func() time.Time
}

// NewTier creates an empty hot tier backed by the given schema registry.
func NewTier(registry *schema.Registry) *Tier {
	return &Tier{
		registry:   registry,
		columns:    make(map[string]*column.Column),
		lastAccess: make(map[string]time.Time),
		now:        time.Now,
	}
}

// AddColumn creates an empty column for an explicitly registered schema.
// Used by connectors at construction time; creating a column that already
// exists is a no-op.
func (t *Tier) AddColumn(s types.ColumnSchema) error {
	if err := t.registry.Register(s); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.columns[s.Name]; ok {
		return nil
	}
	col, err := column.New(s)
	if err != nil {
		return err
	}
	t.columns[s.Name] = col
	return nil
}

// BatchInsert appends a columnar batch. All supplied columns must have equal
// length; never-seen columns get a schema inferred from their first value.
// Validation runs before any mutation, so a failed insert leaves the tier
// exactly as it was.
func (t *Tier) BatchInsert(data map[string][]interface{}) error {
	if len(data) == 0 {
		return errors.NewValidationError(errors.CodeEmptyBatch, "batch has no columns")
	}

	batchSize := -1
	for name, values := range data {
		if batchSize == -1 {
			batchSize = len(values)
			continue
		}
		if len(values) != batchSize {
			return errors.NewValidationError(errors.CodeBatchLengthMismatch,
				fmt.Sprintf("column %q has %d rows, expected %d", name, len(values), batchSize))
		}
	}
	if batchSize == 0 {
		return errors.NewValidationError(errors.CodeEmptyBatch, "batch has no rows")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Create columns for never-seen names, inferring schema from the first
	// value. Inference is once per column name for the life of the store.
	for name, values := range data {
		if _, ok := t.columns[name]; ok {
			continue
		}
		s, ok := t.registry.Get(name)
		if !ok {
			inferred, err := types.Infer(name, firstNonNil(values))
			if err != nil {
				return errors.Wrap(errors.ErrCategoryValidation, errors.CodeTypeMismatch, "infer", err)
			}
			inferred.Nullable = hasNil(values)
			if err := t.registry.Register(inferred); err != nil {
				return err
			}
			s = inferred
		}
		col, err := column.New(s)
		if err != nil {
			return err
		}
		t.columns[name] = col
	}

	// Validate the entire batch before touching any buffer.
	for name, values := range data {
		col := t.columns[name]
		for _, v := range values {
			if err := col.Validate(v); err != nil {
				return err
			}
		}
	}

	for name, values := range data {
		col := t.columns[name]
		for _, v := range values {
			if err := col.Append(v); err != nil {
				// Unreachable after validation; surface rather than swallow.
				return errors.NewInternalError("append after validation", err)
			}
		}
	}

	t.rowCount += int64(batchSize)
	t.batches = append(t.batches, batchMark{rows: batchSize, insertedAt: t.now()})
	t.refreshMemoryUsage()
	return nil
}

// Materialize reads full slices for the requested columns under the tier
// lock, recording last-access time per column. Missing columns appear in the
// result as empty slices rather than errors.
func (t *Tier) Materialize(columns []string) map[string][]interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make(map[string][]interface{}, len(columns))
	accessTime := t.now()
	for _, name := range columns {
		col, ok := t.columns[name]
		if !ok {
			result[name] = []interface{}{}
			continue
		}
		result[name] = col.Values()
		t.lastAccess[name] = accessTime
	}
	return result
}

// AgedData returns the column slices covering every row whose batch was
// inserted before now-olderThan, along with the aged row count. It does not
// mutate the tier; eviction is a separate explicit step so a crash between
// the two only risks duplicate rows, never lost ones.
func (t *Tier) AgedData(olderThan time.Duration) (map[string][]interface{}, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-olderThan)
	aged := 0
	for _, mark := range t.batches {
		if !mark.insertedAt.Before(cutoff) {
			break
		}
		aged += mark.rows
	}
	if aged == 0 {
		return nil, 0
	}

	data := make(map[string][]interface{}, len(t.columns))
	for name, col := range t.columns {
		data[name] = col.Slice(0, aged)
	}
	return data, aged
}

// Evict removes the first n logical rows from every column, compacting the
// buffers in place under the tier lock so a concurrent query sees either the
// old rows or the compacted state, never a half-shifted buffer.
func (t *Tier) Evict(n int) {
	if n <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for _, col := range t.columns {
		before := col.Size()
		col.EvictPrefix(n)
		if removed := before - col.Size(); removed > evicted {
			evicted = removed
		}
	}

	t.rowCount -= int64(evicted)
	if t.rowCount < 0 {
		t.rowCount = 0
	}
	t.rebaseBatches(evicted)
	t.refreshMemoryUsage()
}

// EvictRows removes the given logical rows from every column.
func (t *Tier) EvictRows(indices []int) {
	if len(indices) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for _, col := range t.columns {
		before := col.Size()
		col.EvictRows(indices)
		if removed := before - col.Size(); removed > evicted {
			evicted = removed
		}
	}

	t.rowCount -= int64(evicted)
	if t.rowCount < 0 {
		t.rowCount = 0
	}
	t.rebaseBatches(evicted)
	t.refreshMemoryUsage()
}

// rebaseBatches drops n rows from the front of the batch marks, splitting a
// mark when the eviction lands mid-batch. Callers hold the tier lock.
func (t *Tier) rebaseBatches(n int) {
	for n > 0 && len(t.batches) > 0 {
		if t.batches[0].rows <= n {
			n -= t.batches[0].rows
			t.batches = t.batches[1:]
			continue
		}
		t.batches[0].rows -= n
		n = 0
	}
}

// RowCount returns the current logical row count.
func (t *Tier) RowCount() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rowCount
}

// Stats reports row count, estimated memory usage in bytes, and column count.
func (t *Tier) Stats() (rows int64, memoryBytes int64, columns int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rowCount, t.memoryBytes, len(t.columns)
}

// DictionarySize returns the number of dictionary entries for a column.
// Zero when the column does not exist or is not dictionary encoded.
func (t *Tier) DictionarySize(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	col, ok := t.columns[name]
	if !ok {
		return 0
	}
	return col.DictionarySize()
}

// LastAccess returns the diagnostic last-access time for a column, zero if
// the column was never read.
func (t *Tier) LastAccess(name string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastAccess[name]
}

// SetClock replaces the tier's time source. Test hook.
func (t *Tier) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// refreshMemoryUsage recomputes the running memory estimate. Callers hold
// the tier lock.
func (t *Tier) refreshMemoryUsage() {
	var total int64
	for _, col := range t.columns {
		total += col.MemoryBytes()
	}
	t.memoryBytes = total
}

func firstNonNil(values []interface{}) interface{} {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func hasNil(values []interface{}) bool {
	for _, v := range values {
		if v == nil {
			return true
		}
	}
	return false
}
