package column

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/prostudio/cortexstore/internal/errors"
	"github.com/prostudio/cortexstore/pkg/types"
)

// PhaseQuantum is the quantization step applied to complex phases under the
// spectral policy. Decompressed phases are within half a step of the
// originals; amplitudes are exact.
const PhaseQuantum = math.Pi / 8

// Compressor tags prefixed to every compressed payload so the read path is
// self-describing.
const (
	compressorSnappy  byte = 1
	compressorZstd    byte = 2
	compressorZstdMax byte = 3
)

// Encoders are created once with concurrency 1 so identical input always
// yields identical bytes.
var (
	zstdEnc    *zstd.Encoder
	zstdEncMax *zstd.Encoder
	zstdDec    *zstd.Decoder
)

func init() {
	zstdEnc, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	zstdEncMax, _ = zstd.NewWriter(nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	zstdDec, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
}

// Compress produces an opaque payload for a column slice under its schema's
// compression policy:
//
//   - dictionary: codec payload (dictionary + id buffer) through snappy
//   - spectral: phase-quantized complex values through zstd at best level
//   - generic/none: codec payload through snappy
func Compress(schema types.ColumnSchema, values []interface{}) ([]byte, error) {
	switch schema.Compression {
	case types.CompressionSpectral:
		quantized := make([]interface{}, len(values))
		for i, v := range values {
			if v == nil {
				continue
			}
			c, ok := types.AsComplex(v)
			if !ok {
				return nil, encodeMismatch(schema, i, v)
			}
			quantized[i] = quantizePhase(c)
		}
		payload, err := Encode(schema, quantized)
		if err != nil {
			return nil, err
		}
		return compressBytes(compressorZstdMax, payload)

	case types.CompressionDictionary, types.CompressionGeneric, types.CompressionNone:
		payload, err := Encode(schema, values)
		if err != nil {
			return nil, err
		}
		return compressBytes(compressorSnappy, payload)

	default:
		return nil, errors.NewCompressionError(errors.CodeCompressionFailed,
			fmt.Sprintf("unknown compression policy %q", schema.Compression), nil)
	}
}

// CompressChunk compresses a column slice for warm-tier storage: generic
// codec serialization through zstd at the default level, regardless of the
// column's own policy. The second return is the uncompressed payload size,
// used for compression ratio accounting.
func CompressChunk(schema types.ColumnSchema, values []interface{}) ([]byte, int, error) {
	payload, err := Encode(schema, values)
	if err != nil {
		return nil, 0, err
	}
	compressed, err := compressBytes(compressorZstd, payload)
	if err != nil {
		return nil, 0, err
	}
	return compressed, len(payload), nil
}

// CompressArchive compresses a whole multi-column batch for the cold tier at
// maximum ratio.
func CompressArchive(batch map[string][]interface{}, schemas map[string]types.ColumnSchema) ([]byte, error) {
	payload, err := EncodeBatch(batch, schemas)
	if err != nil {
		return nil, err
	}
	return compressBytes(compressorZstdMax, payload)
}

// Decompress inverts Compress and CompressChunk, returning the decoded
// schema (name-less) and values.
func Decompress(data []byte) (types.ColumnSchema, []interface{}, error) {
	payload, err := decompressBytes(data)
	if err != nil {
		return types.ColumnSchema{}, nil, err
	}
	return Decode(payload)
}

// DecompressArchive inverts CompressArchive.
func DecompressArchive(data []byte) (map[string][]interface{}, error) {
	payload, err := decompressBytes(data)
	if err != nil {
		return nil, err
	}
	return DecodeBatch(payload)
}

// quantizePhase rounds a complex value's phase to the nearest PhaseQuantum
// step, preserving amplitude exactly.
func quantizePhase(c complex128) complex128 {
	amplitude := cmplx.Abs(c)
	phase := cmplx.Phase(c)
	quantized := math.Round(phase/PhaseQuantum) * PhaseQuantum
	return cmplx.Rect(amplitude, quantized)
}

func compressBytes(compressor byte, raw []byte) ([]byte, error) {
	var compressed []byte
	switch compressor {
	case compressorSnappy:
		compressed = snappy.Encode(nil, raw)
	case compressorZstd:
		compressed = zstdEnc.EncodeAll(raw, nil)
	case compressorZstdMax:
		compressed = zstdEncMax.EncodeAll(raw, nil)
	default:
		return nil, errors.NewCompressionError(errors.CodeCompressionFailed,
			fmt.Sprintf("unknown compressor tag %d", compressor), nil)
	}

	out := make([]byte, 0, len(compressed)+1)
	out = append(out, compressor)
	return append(out, compressed...), nil
}

func decompressBytes(data []byte) ([]byte, error) {
	if len(data) < 1 {
		return nil, errors.NewCompressionError(errors.CodeDecompressionFailed, "empty payload", nil)
	}

	switch data[0] {
	case compressorSnappy:
		raw, err := snappy.Decode(nil, data[1:])
		if err != nil {
			return nil, errors.NewCompressionError(errors.CodeDecompressionFailed, "snappy", err)
		}
		return raw, nil
	case compressorZstd, compressorZstdMax:
		raw, err := zstdDec.DecodeAll(data[1:], nil)
		if err != nil {
			return nil, errors.NewCompressionError(errors.CodeDecompressionFailed, "zstd", err)
		}
		return raw, nil
	default:
		return nil, errors.NewCompressionError(errors.CodeDecompressionFailed,
			fmt.Sprintf("unknown compressor tag %d", data[0]), nil)
	}
}
