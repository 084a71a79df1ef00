package column

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/prostudio/cortexstore/internal/errors"
	"github.com/prostudio/cortexstore/pkg/types"
)

// Binary layout of an encoded column slice (all integers little-endian):
//
//	[version:1][elemType:1][vectorWidth:2][count:4][flags:1]
//	[null bitmap: ceil(count/64)*8 bytes, present iff flags&flagNulls]
//	[dictionary: uint32 entries, (uint32 len + bytes) each, iff flags&flagDict]
//	[values]
//
// String values are always dictionary coded on the wire, in first-seen id
// order, so encoding the same logical slice twice is byte identical.
const (
	codecVersion = 1

	flagNulls byte = 1 << 0
	flagDict  byte = 1 << 1
)

// Encode serializes a slice of values under the given schema into a
// self-describing binary payload. Values that disagree with the schema fail
// with TYPE_MISMATCH; nils are encoded through the null bitmap and require a
// nullable schema.
func Encode(schema types.ColumnSchema, values []interface{}) ([]byte, error) {
	if err := schema.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCategoryValidation, errors.CodeSchemaConflict, "encode", err)
	}

	count := len(values)
	var nulls []uint64
	for i, v := range values {
		if v == nil {
			if !schema.Nullable {
				return nil, errors.NewValidationError(errors.CodeTypeMismatch,
					fmt.Sprintf("column %q: nil value at row %d in non-nullable column", schema.Name, i))
			}
			if nulls == nil {
				nulls = make([]uint64, (count+63)/64)
			}
			nulls[i/64] |= 1 << (uint(i) % 64)
		}
	}

	var flags byte
	if nulls != nil {
		flags |= flagNulls
	}
	if schema.Type == types.ElementString {
		flags |= flagDict
	}

	buf := &bytes.Buffer{}
	buf.WriteByte(codecVersion)
	buf.WriteByte(byte(schema.Type))
	writeUint16(buf, uint16(schema.VectorWidth))
	writeUint32(buf, uint32(count))
	buf.WriteByte(flags)

	if nulls != nil {
		for _, word := range nulls {
			writeUint64(buf, word)
		}
	}

	isNull := func(i int) bool {
		return nulls != nil && nulls[i/64]&(1<<(uint(i)%64)) != 0
	}

	switch schema.Type {
	case types.ElementInt:
		for i, v := range values {
			if isNull(i) {
				writeUint64(buf, 0)
				continue
			}
			n, ok := types.AsInt64(v)
			if !ok {
				return nil, encodeMismatch(schema, i, v)
			}
			writeUint64(buf, uint64(n))
		}

	case types.ElementFloat:
		for i, v := range values {
			if isNull(i) {
				writeUint64(buf, 0)
				continue
			}
			f, ok := types.AsFloat64(v)
			if !ok {
				return nil, encodeMismatch(schema, i, v)
			}
			writeUint64(buf, math.Float64bits(f))
		}

	case types.ElementComplex:
		for i, v := range values {
			if isNull(i) {
				writeUint64(buf, 0)
				writeUint64(buf, 0)
				continue
			}
			c, ok := types.AsComplex(v)
			if !ok {
				return nil, encodeMismatch(schema, i, v)
			}
			writeUint64(buf, math.Float64bits(real(c)))
			writeUint64(buf, math.Float64bits(imag(c)))
		}

	case types.ElementVector:
		for i, v := range values {
			if isNull(i) {
				for j := 0; j < schema.VectorWidth; j++ {
					writeUint64(buf, 0)
				}
				continue
			}
			vec, ok := types.AsVector(v)
			if !ok || len(vec) != schema.VectorWidth {
				return nil, encodeMismatch(schema, i, v)
			}
			for _, f := range vec {
				writeUint64(buf, math.Float64bits(f))
			}
		}

	case types.ElementString:
		dictValues := make([]string, 0)
		dictIndex := make(map[string]uint32)
		ids := make([]uint32, count)
		for i, v := range values {
			if isNull(i) {
				continue
			}
			s, ok := types.AsString(v)
			if !ok {
				return nil, encodeMismatch(schema, i, v)
			}
			id, seen := dictIndex[s]
			if !seen {
				id = uint32(len(dictValues))
				dictValues = append(dictValues, s)
				dictIndex[s] = id
			}
			ids[i] = id
		}

		writeUint32(buf, uint32(len(dictValues)))
		for _, entry := range dictValues {
			writeUint32(buf, uint32(len(entry)))
			buf.WriteString(entry)
		}
		for _, id := range ids {
			writeUint32(buf, id)
		}
	}

	return buf.Bytes(), nil
}

// Decode deserializes a payload produced by Encode. The returned schema
// carries element type, vector width, and nullability; the column name is
// not part of the wire format.
func Decode(data []byte) (types.ColumnSchema, []interface{}, error) {
	r := bytes.NewReader(data)

	var version, elemType, flags byte
	var width uint16
	var count uint32

	if err := readBytes(r, &version, &elemType); err != nil {
		return types.ColumnSchema{}, nil, decodeErr("header", err)
	}
	if version != codecVersion {
		return types.ColumnSchema{}, nil,
			errors.NewCompressionError(errors.CodeDecompressionFailed,
				fmt.Sprintf("unsupported codec version %d", version), nil)
	}
	if err := binary.Read(r, binary.LittleEndian, &width); err != nil {
		return types.ColumnSchema{}, nil, decodeErr("vector width", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return types.ColumnSchema{}, nil, decodeErr("count", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
		return types.ColumnSchema{}, nil, decodeErr("flags", err)
	}

	schema := types.ColumnSchema{
		Type:        types.ElementType(elemType),
		VectorWidth: int(width),
		Nullable:    flags&flagNulls != 0,
	}
	if !schema.Type.Valid() {
		return types.ColumnSchema{}, nil,
			errors.NewCompressionError(errors.CodeDecompressionFailed,
				fmt.Sprintf("unknown element type %d", elemType), nil)
	}

	var nulls []uint64
	if flags&flagNulls != 0 {
		nulls = make([]uint64, (count+63)/64)
		for i := range nulls {
			if err := binary.Read(r, binary.LittleEndian, &nulls[i]); err != nil {
				return types.ColumnSchema{}, nil, decodeErr("null bitmap", err)
			}
		}
	}
	isNull := func(i int) bool {
		return nulls != nil && nulls[i/64]&(1<<(uint(i)%64)) != 0
	}

	values := make([]interface{}, count)

	switch schema.Type {
	case types.ElementInt:
		for i := 0; i < int(count); i++ {
			var raw uint64
			if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
				return types.ColumnSchema{}, nil, decodeErr("int value", err)
			}
			if !isNull(i) {
				values[i] = int64(raw)
			}
		}

	case types.ElementFloat:
		for i := 0; i < int(count); i++ {
			var raw uint64
			if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
				return types.ColumnSchema{}, nil, decodeErr("float value", err)
			}
			if !isNull(i) {
				values[i] = math.Float64frombits(raw)
			}
		}

	case types.ElementComplex:
		for i := 0; i < int(count); i++ {
			var re, im uint64
			if err := binary.Read(r, binary.LittleEndian, &re); err != nil {
				return types.ColumnSchema{}, nil, decodeErr("complex value", err)
			}
			if err := binary.Read(r, binary.LittleEndian, &im); err != nil {
				return types.ColumnSchema{}, nil, decodeErr("complex value", err)
			}
			if !isNull(i) {
				values[i] = complex(math.Float64frombits(re), math.Float64frombits(im))
			}
		}

	case types.ElementVector:
		for i := 0; i < int(count); i++ {
			vec := make([]float64, width)
			for j := range vec {
				var raw uint64
				if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
					return types.ColumnSchema{}, nil, decodeErr("vector value", err)
				}
				vec[j] = math.Float64frombits(raw)
			}
			if !isNull(i) {
				values[i] = vec
			}
		}

	case types.ElementString:
		if flags&flagDict == 0 {
			return types.ColumnSchema{}, nil,
				errors.NewCompressionError(errors.CodeDecompressionFailed, "string payload without dictionary", nil)
		}
		var dictLen uint32
		if err := binary.Read(r, binary.LittleEndian, &dictLen); err != nil {
			return types.ColumnSchema{}, nil, decodeErr("dictionary length", err)
		}
		dict := make([]string, dictLen)
		for i := range dict {
			var entryLen uint32
			if err := binary.Read(r, binary.LittleEndian, &entryLen); err != nil {
				return types.ColumnSchema{}, nil, decodeErr("dictionary entry", err)
			}
			entry := make([]byte, entryLen)
			if _, err := io.ReadFull(r, entry); err != nil {
				return types.ColumnSchema{}, nil, decodeErr("dictionary entry", err)
			}
			dict[i] = string(entry)
		}
		for i := 0; i < int(count); i++ {
			var id uint32
			if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
				return types.ColumnSchema{}, nil, decodeErr("string id", err)
			}
			if isNull(i) {
				continue
			}
			if int(id) >= len(dict) {
				return types.ColumnSchema{}, nil,
					errors.NewCompressionError(errors.CodeDecompressionFailed,
						fmt.Sprintf("dictionary id %d out of range", id), nil)
			}
			values[i] = dict[id]
		}
	}

	return schema, values, nil
}

// EncodeBatch serializes a multi-column batch into one payload: columns are
// written in sorted name order as (name, encoded column slice) pairs. Used
// by the cold tier, which archives whole batches rather than single columns.
func EncodeBatch(batch map[string][]interface{}, schemas map[string]types.ColumnSchema) ([]byte, error) {
	names := make([]string, 0, len(batch))
	for name := range batch {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := &bytes.Buffer{}
	writeUint32(buf, uint32(len(names)))
	for _, name := range names {
		schema, ok := schemas[name]
		if !ok {
			inferred, err := InferSlice(name, batch[name])
			if err != nil {
				return nil, err
			}
			schema = inferred
		}
		payload, err := Encode(schema, batch[name])
		if err != nil {
			return nil, err
		}
		writeUint32(buf, uint32(len(name)))
		buf.WriteString(name)
		writeUint32(buf, uint32(len(payload)))
		buf.Write(payload)
	}
	return buf.Bytes(), nil
}

// DecodeBatch inverts EncodeBatch.
func DecodeBatch(data []byte) (map[string][]interface{}, error) {
	r := bytes.NewReader(data)

	var columns uint32
	if err := binary.Read(r, binary.LittleEndian, &columns); err != nil {
		return nil, decodeErr("batch header", err)
	}

	batch := make(map[string][]interface{}, columns)
	for i := uint32(0); i < columns; i++ {
		var nameLen uint32
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, decodeErr("column name", err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, decodeErr("column name", err)
		}
		var payloadLen uint32
		if err := binary.Read(r, binary.LittleEndian, &payloadLen); err != nil {
			return nil, decodeErr("column payload", err)
		}
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, decodeErr("column payload", err)
		}
		_, values, err := Decode(payload)
		if err != nil {
			return nil, err
		}
		batch[string(name)] = values
	}
	return batch, nil
}

// InferSlice infers a schema from the first non-nil value in a slice,
// marking the schema nullable when nils are present.
func InferSlice(name string, values []interface{}) (types.ColumnSchema, error) {
	var sample interface{}
	nullable := false
	for _, v := range values {
		if v == nil {
			nullable = true
			continue
		}
		if sample == nil {
			sample = v
		}
	}
	if sample == nil {
		return types.ColumnSchema{}, errors.NewValidationError(errors.CodeTypeMismatch,
			fmt.Sprintf("column %q: cannot infer schema from all-nil values", name))
	}
	schema, err := types.Infer(name, sample)
	if err != nil {
		return types.ColumnSchema{}, errors.Wrap(errors.ErrCategoryValidation, errors.CodeTypeMismatch, "infer schema", err)
	}
	schema.Nullable = nullable
	return schema, nil
}

func encodeMismatch(schema types.ColumnSchema, row int, v interface{}) error {
	return errors.NewValidationError(errors.CodeTypeMismatch,
		fmt.Sprintf("column %q: row %d expects %s, got %T", schema.Name, row, schema.Type, v))
}

func decodeErr(what string, cause error) error {
	return errors.NewCompressionError(errors.CodeDecompressionFailed, "decode "+what, cause)
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var scratch [2]byte
	binary.LittleEndian.PutUint16(scratch[:], v)
	buf.Write(scratch[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], v)
	buf.Write(scratch[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], v)
	buf.Write(scratch[:])
}

func readBytes(r *bytes.Reader, dst ...*byte) error {
	for _, d := range dst {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		*d = b
	}
	return nil
}
