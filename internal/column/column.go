// Package column implements typed, growable columnar arrays with optional
// dictionary encoding, null bitmaps, and per-policy compression.
package column

import (
	"fmt"

	"github.com/prostudio/cortexstore/internal/errors"
	"github.com/prostudio/cortexstore/pkg/types"
)

// DefaultCapacity is the initial element capacity of a new column.
const DefaultCapacity = 1024

// growthFactor is the capacity multiplier applied when a column fills up.
const growthFactor = 1.5

// Column is a typed, growable columnar array. Exactly one of the typed
// buffers is active, chosen by the schema's element type at construction.
// String columns are dictionary encoded: an append-only value table plus a
// buffer of uint32 ids. Ids are never reused, so every id in the buffer has
// a dictionary entry for the lifetime of the column.
//
// Column is not safe for concurrent use; the owning tier serializes access.
type Column struct {
	schema   types.ColumnSchema
	size     int
	capacity int

	ints      []int64
	floats    []float64
	complexes []complex128
	vectors   []float64 // flattened, VectorWidth values per row

	dictValues []string
	dictIndex  map[string]uint32
	ids        []uint32

	nulls []uint64 // one bit per logical row, nil until first null
}

// New creates an empty column for the given schema.
func New(schema types.ColumnSchema) (*Column, error) {
	return NewWithCapacity(schema, DefaultCapacity)
}

// NewWithCapacity creates an empty column with an explicit initial capacity.
func NewWithCapacity(schema types.ColumnSchema, capacity int) (*Column, error) {
	if err := schema.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCategoryValidation, errors.CodeSchemaConflict, "invalid column schema", err)
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	c := &Column{
		schema:   schema,
		capacity: capacity,
	}

	switch schema.Type {
	case types.ElementInt:
		c.ints = make([]int64, capacity)
	case types.ElementFloat:
		c.floats = make([]float64, capacity)
	case types.ElementComplex:
		c.complexes = make([]complex128, capacity)
	case types.ElementVector:
		c.vectors = make([]float64, capacity*schema.VectorWidth)
	case types.ElementString:
		c.dictIndex = make(map[string]uint32)
		c.ids = make([]uint32, capacity)
	}

	return c, nil
}

// Schema returns the column's schema.
func (c *Column) Schema() types.ColumnSchema { return c.schema }

// Size returns the number of logical rows in the column.
func (c *Column) Size() int { return c.size }

// Capacity returns the current buffer capacity in rows.
func (c *Column) Capacity() int { return c.capacity }

// DictionarySize returns the number of distinct dictionary entries.
// Zero for non-string columns.
func (c *Column) DictionarySize() int { return len(c.dictValues) }

// Append adds one value to the column, growing the buffer by 1.5x when full.
// A nil value is accepted only for nullable columns; a value whose type
// disagrees with the schema fails with TYPE_MISMATCH before any mutation.
func (c *Column) Append(value interface{}) error {
	if value == nil {
		if !c.schema.Nullable {
			return errors.NewValidationError(errors.CodeTypeMismatch,
				fmt.Sprintf("column %q is not nullable", c.schema.Name))
		}
		if c.size >= c.capacity {
			c.grow()
		}
		c.setNull(c.size)
		c.size++
		return nil
	}

	// Coerce before growing so a mismatch leaves the column untouched.
	switch c.schema.Type {
	case types.ElementInt:
		v, ok := types.AsInt64(value)
		if !ok {
			return c.typeMismatch(value)
		}
		if c.size >= c.capacity {
			c.grow()
		}
		c.ints[c.size] = v

	case types.ElementFloat:
		v, ok := types.AsFloat64(value)
		if !ok {
			return c.typeMismatch(value)
		}
		if c.size >= c.capacity {
			c.grow()
		}
		c.floats[c.size] = v

	case types.ElementComplex:
		v, ok := types.AsComplex(value)
		if !ok {
			return c.typeMismatch(value)
		}
		if c.size >= c.capacity {
			c.grow()
		}
		c.complexes[c.size] = v

	case types.ElementVector:
		v, ok := types.AsVector(value)
		if !ok || len(v) != c.schema.VectorWidth {
			return c.typeMismatch(value)
		}
		if c.size >= c.capacity {
			c.grow()
		}
		copy(c.vectors[c.size*c.schema.VectorWidth:], v)

	case types.ElementString:
		v, ok := types.AsString(value)
		if !ok {
			return c.typeMismatch(value)
		}
		if c.size >= c.capacity {
			c.grow()
		}
		c.ids[c.size] = c.intern(v)
	}

	c.size++
	return nil
}

// Validate reports whether value could be appended to the column, without
// mutating anything. Used by tiers to reject a whole batch before any row
// of it is applied.
func (c *Column) Validate(value interface{}) error {
	if value == nil {
		if !c.schema.Nullable {
			return errors.NewValidationError(errors.CodeTypeMismatch,
				fmt.Sprintf("column %q is not nullable", c.schema.Name))
		}
		return nil
	}

	switch c.schema.Type {
	case types.ElementInt:
		if _, ok := types.AsInt64(value); !ok {
			return c.typeMismatch(value)
		}
	case types.ElementFloat:
		if _, ok := types.AsFloat64(value); !ok {
			return c.typeMismatch(value)
		}
	case types.ElementComplex:
		if _, ok := types.AsComplex(value); !ok {
			return c.typeMismatch(value)
		}
	case types.ElementVector:
		v, ok := types.AsVector(value)
		if !ok || len(v) != c.schema.VectorWidth {
			return c.typeMismatch(value)
		}
	case types.ElementString:
		if _, ok := types.AsString(value); !ok {
			return c.typeMismatch(value)
		}
	}
	return nil
}

// intern returns the dictionary id for v, assigning the next id on first
// sight. Ids are monotonically increasing and never reused.
func (c *Column) intern(v string) uint32 {
	if id, ok := c.dictIndex[v]; ok {
		return id
	}
	id := uint32(len(c.dictValues))
	c.dictValues = append(c.dictValues, v)
	c.dictIndex[v] = id
	return id
}

// Get returns the value at row i, or nil if the null bitmap marks the row.
// Vector values are returned as a copy.
func (c *Column) Get(i int) interface{} {
	if i < 0 || i >= c.size {
		return nil
	}
	if c.isNull(i) {
		return nil
	}

	switch c.schema.Type {
	case types.ElementInt:
		return c.ints[i]
	case types.ElementFloat:
		return c.floats[i]
	case types.ElementComplex:
		return c.complexes[i]
	case types.ElementVector:
		w := c.schema.VectorWidth
		out := make([]float64, w)
		copy(out, c.vectors[i*w:(i+1)*w])
		return out
	case types.ElementString:
		return c.dictValues[c.ids[i]]
	}
	return nil
}

// Slice returns the values in [start, end) as materialized values.
// Dictionary rows are decoded; null rows materialize as nil.
func (c *Column) Slice(start, end int) []interface{} {
	if start < 0 {
		start = 0
	}
	if end > c.size {
		end = c.size
	}
	if start >= end {
		return []interface{}{}
	}

	out := make([]interface{}, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, c.Get(i))
	}
	return out
}

// Values returns all logical rows as materialized values.
func (c *Column) Values() []interface{} {
	return c.Slice(0, c.size)
}

// EvictPrefix removes the first n rows, shifting survivors left in place.
// Dictionary entries are retained even when no surviving row references
// them; the dictionary is append-only.
func (c *Column) EvictPrefix(n int) {
	if n <= 0 {
		return
	}
	if n > c.size {
		n = c.size
	}
	remaining := c.size - n

	switch c.schema.Type {
	case types.ElementInt:
		copy(c.ints, c.ints[n:c.size])
	case types.ElementFloat:
		copy(c.floats, c.floats[n:c.size])
	case types.ElementComplex:
		copy(c.complexes, c.complexes[n:c.size])
	case types.ElementVector:
		w := c.schema.VectorWidth
		copy(c.vectors, c.vectors[n*w:c.size*w])
	case types.ElementString:
		copy(c.ids, c.ids[n:c.size])
	}

	if c.nulls != nil {
		shifted := make([]uint64, len(c.nulls))
		for i := 0; i < remaining; i++ {
			if c.isNull(n + i) {
				shifted[i/64] |= 1 << (uint(i) % 64)
			}
		}
		c.nulls = shifted
	}

	c.size = remaining
}

// EvictRows removes the given logical rows, shifting survivors left.
// Indices must be sorted ascending; duplicates and out-of-range entries
// are ignored.
func (c *Column) EvictRows(indices []int) {
	if len(indices) == 0 {
		return
	}

	drop := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < c.size {
			drop[idx] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return
	}

	var newNulls []uint64
	if c.nulls != nil {
		newNulls = make([]uint64, len(c.nulls))
	}

	w := c.schema.VectorWidth
	kept := 0
	for i := 0; i < c.size; i++ {
		if _, gone := drop[i]; gone {
			continue
		}
		if kept != i {
			switch c.schema.Type {
			case types.ElementInt:
				c.ints[kept] = c.ints[i]
			case types.ElementFloat:
				c.floats[kept] = c.floats[i]
			case types.ElementComplex:
				c.complexes[kept] = c.complexes[i]
			case types.ElementVector:
				copy(c.vectors[kept*w:(kept+1)*w], c.vectors[i*w:(i+1)*w])
			case types.ElementString:
				c.ids[kept] = c.ids[i]
			}
		}
		if newNulls != nil && c.isNull(i) {
			newNulls[kept/64] |= 1 << (uint(kept) % 64)
		}
		kept++
	}

	if newNulls != nil {
		c.nulls = newNulls
	}
	c.size = kept
}

// MemoryBytes estimates the column's buffer footprint: the raw buffer size
// for numeric columns, and the id buffer plus a short per-key overhead for
// dictionary columns.
func (c *Column) MemoryBytes() int64 {
	var total int64
	switch c.schema.Type {
	case types.ElementInt:
		total = int64(c.capacity) * 8
	case types.ElementFloat:
		total = int64(c.capacity) * 8
	case types.ElementComplex:
		total = int64(c.capacity) * 16
	case types.ElementVector:
		total = int64(c.capacity) * int64(c.schema.VectorWidth) * 8
	case types.ElementString:
		total = int64(c.capacity) * 4
		for _, v := range c.dictValues {
			total += int64(len(v)) + 4
		}
	}
	if c.nulls != nil {
		total += int64(len(c.nulls)) * 8
	}
	return total
}

// grow expands capacity by the growth factor, copying existing elements and
// the null bitmap into the new buffers. Allocation failure is fatal and
// surfaces as a runtime panic; it is not retried.
func (c *Column) grow() {
	newCapacity := int(float64(c.capacity) * growthFactor)
	if newCapacity <= c.capacity {
		newCapacity = c.capacity + 1
	}

	switch c.schema.Type {
	case types.ElementInt:
		buf := make([]int64, newCapacity)
		copy(buf, c.ints[:c.size])
		c.ints = buf
	case types.ElementFloat:
		buf := make([]float64, newCapacity)
		copy(buf, c.floats[:c.size])
		c.floats = buf
	case types.ElementComplex:
		buf := make([]complex128, newCapacity)
		copy(buf, c.complexes[:c.size])
		c.complexes = buf
	case types.ElementVector:
		w := c.schema.VectorWidth
		buf := make([]float64, newCapacity*w)
		copy(buf, c.vectors[:c.size*w])
		c.vectors = buf
	case types.ElementString:
		buf := make([]uint32, newCapacity)
		copy(buf, c.ids[:c.size])
		c.ids = buf
	}

	if c.nulls != nil {
		bitmap := make([]uint64, (newCapacity+63)/64)
		copy(bitmap, c.nulls)
		c.nulls = bitmap
	}

	c.capacity = newCapacity
}

func (c *Column) setNull(i int) {
	if c.nulls == nil {
		c.nulls = make([]uint64, (c.capacity+63)/64)
	} else if i/64 >= len(c.nulls) {
		bitmap := make([]uint64, (c.capacity+63)/64)
		copy(bitmap, c.nulls)
		c.nulls = bitmap
	}
	c.nulls[i/64] |= 1 << (uint(i) % 64)
}

func (c *Column) isNull(i int) bool {
	if c.nulls == nil || i/64 >= len(c.nulls) {
		return false
	}
	return c.nulls[i/64]&(1<<(uint(i)%64)) != 0
}

// Compress produces the column's compressed payload under its schema policy.
// Repeated calls on unchanged data yield byte-identical output.
func (c *Column) Compress() ([]byte, error) {
	return Compress(c.schema, c.Values())
}

func (c *Column) typeMismatch(value interface{}) error {
	return errors.NewValidationError(errors.CodeTypeMismatch,
		fmt.Sprintf("column %q expects %s, got %T", c.schema.Name, c.schema.Type, value))
}
