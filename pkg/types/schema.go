// Package types provides core data types for CortexStore.
package types

import "fmt"

// ElementType is the closed set of value types a column can store.
// The representation is decided once, at column creation time; values that
// disagree with it are rejected rather than reinterpreted.
type ElementType uint8

const (
	// ElementInt stores signed 64-bit integers.
	ElementInt ElementType = iota + 1

	// ElementFloat stores 64-bit floating point values.
	ElementFloat

	// ElementComplex stores complex128 magnitude/phase pairs.
	ElementComplex

	// ElementVector stores fixed-width float64 vectors.
	ElementVector

	// ElementString stores dictionary-encoded strings.
	ElementString
)

// String returns the canonical name of the element type.
func (t ElementType) String() string {
	switch t {
	case ElementInt:
		return "int"
	case ElementFloat:
		return "float"
	case ElementComplex:
		return "complex"
	case ElementVector:
		return "vector"
	case ElementString:
		return "string"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Valid reports whether t is a known element type.
func (t ElementType) Valid() bool {
	return t >= ElementInt && t <= ElementString
}

// Compression identifies the compression policy for a column.
type Compression string

const (
	// CompressionNone leaves the raw buffer uncompressed.
	CompressionNone Compression = "none"

	// CompressionDictionary serializes (dictionary, index buffer) then applies
	// the generic byte compressor. Only valid for string columns.
	CompressionDictionary Compression = "dictionary"

	// CompressionGeneric runs the serialized buffer through the generic byte
	// compressor.
	CompressionGeneric Compression = "generic"

	// CompressionSpectral quantizes the phase of complex values to a coarse
	// step before compression. Lossy on phase, exact on amplitude.
	CompressionSpectral Compression = "spectral"
)

// ColumnSchema describes a single column: its name, element type, optional
// vector width, compression policy, and nullability. A schema is immutable
// once the column holds data.
type ColumnSchema struct {
	// Name is the column name.
	Name string `json:"name"`

	// Type is the element type stored in the column.
	Type ElementType `json:"type"`

	// VectorWidth is the fixed element count for vector columns (0 otherwise).
	VectorWidth int `json:"vector_width,omitempty"`

	// Compression is the compression policy applied by Compress.
	Compression Compression `json:"compression"`

	// Nullable indicates the column carries a null bitmap.
	Nullable bool `json:"nullable"`
}

// Validate checks that the schema is internally consistent.
func (s ColumnSchema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("column schema: name is required")
	}
	if !s.Type.Valid() {
		return fmt.Errorf("column schema %q: invalid element type %d", s.Name, s.Type)
	}
	if s.Type == ElementVector && s.VectorWidth <= 0 {
		return fmt.Errorf("column schema %q: vector columns require a positive width", s.Name)
	}
	if s.Type != ElementVector && s.VectorWidth != 0 {
		return fmt.Errorf("column schema %q: width is only valid for vector columns", s.Name)
	}
	if s.Compression == CompressionDictionary && s.Type != ElementString {
		return fmt.Errorf("column schema %q: dictionary compression requires a string column", s.Name)
	}
	if s.Compression == CompressionSpectral && s.Type != ElementComplex {
		return fmt.Errorf("column schema %q: spectral compression requires a complex column", s.Name)
	}
	return nil
}

// Infer derives a ColumnSchema from the first value observed for a column.
// Strings get dictionary encoding, complex values get the spectral policy,
// and everything else compresses generically.
func Infer(name string, sample interface{}) (ColumnSchema, error) {
	schema := ColumnSchema{Name: name, Compression: CompressionGeneric}

	switch v := sample.(type) {
	case string:
		schema.Type = ElementString
		schema.Compression = CompressionDictionary
	case complex128:
		schema.Type = ElementComplex
		schema.Compression = CompressionSpectral
	case complex64:
		schema.Type = ElementComplex
		schema.Compression = CompressionSpectral
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		schema.Type = ElementInt
	case float32, float64:
		schema.Type = ElementFloat
	case []float64:
		schema.Type = ElementVector
		schema.VectorWidth = len(v)
	case []float32:
		schema.Type = ElementVector
		schema.VectorWidth = len(v)
	case nil:
		return ColumnSchema{}, fmt.Errorf("cannot infer schema for column %q from a nil value", name)
	default:
		return ColumnSchema{}, fmt.Errorf("cannot infer schema for column %q from value of type %T", name, sample)
	}

	return schema, nil
}

// Tier identifies one of the three storage tiers.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
)

// Valid reports whether t names a known tier.
func (t Tier) Valid() bool {
	return t == TierHot || t == TierWarm || t == TierCold
}
