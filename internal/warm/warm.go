// Package warm implements the disk-backed warm tier: one append-only file of
// compressed column chunks per column. There is no chunk index; point and
// range reads scan the full column file, which is an accepted limitation of
// the tier.
package warm

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/errgroup"

	"github.com/prostudio/cortexstore/internal/column"
	"github.com/prostudio/cortexstore/internal/errors"
)

// chunkFileExt is the extension of per-column chunk files.
const chunkFileExt = ".col"

// frameHeaderSize is the fixed prefix of every chunk frame:
// [payloadLen:4 LE][rowCount:4 LE][murmur3-64 checksum:8 LE].
const frameHeaderSize = 16

// columnMeta tracks running accounting for one column file.
type columnMeta struct {
	path            string
	rows            int64
	compressedBytes int64
}

// Tier is the disk-backed warm tier. A single mutex serializes writers;
// reads open the files independently and only take the lock to snapshot
// metadata.
type Tier struct {
	dir string

	mu               sync.Mutex
	columns          map[string]*columnMeta
	rowCount         int64
	diskBytes        int64
	rawBytes         int64
	compressedTotal  int64
	compressionRatio float64
}

// NewTier opens (or creates) a warm tier rooted at dir. Existing column
// files are rediscovered by directory listing; their frame headers are
// scanned to rebuild row counts without decompressing any payload.
func NewTier(dir string) (*Tier, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewStorageError(errors.CodeWriteFailed, "create warm tier directory", err)
	}

	t := &Tier{
		dir:              dir,
		columns:          make(map[string]*columnMeta),
		compressionRatio: 1.0,
	}
	if err := t.recover(); err != nil {
		return nil, err
	}
	return t, nil
}

// recover rebuilds column metadata from existing chunk files.
func (t *Tier) recover() error {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return errors.NewStorageError(errors.CodeReadFailed, "list warm tier directory", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), chunkFileExt) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), chunkFileExt)
		path := filepath.Join(t.dir, entry.Name())

		rows, size, err := scanFrames(path)
		if err != nil {
			return err
		}

		t.columns[name] = &columnMeta{path: path, rows: rows, compressedBytes: size}
		t.diskBytes += size
		if rows > t.rowCount {
			t.rowCount = rows
		}
	}
	return nil
}

// scanFrames walks a chunk file's frame headers, returning the total row
// count and file bytes. A truncated trailing frame stops the scan.
func scanFrames(path string) (rows int64, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, errors.NewStorageError(errors.CodeReadFailed, "open chunk file", err)
	}
	defer f.Close()

	var header [frameHeaderSize]byte
	for {
		if _, err := io.ReadFull(f, header[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return 0, 0, errors.NewStorageError(errors.CodeReadFailed, "scan chunk frame", err)
		}
		payloadLen := binary.LittleEndian.Uint32(header[0:4])
		rows += int64(binary.LittleEndian.Uint32(header[4:8]))
		size += frameHeaderSize + int64(payloadLen)
		if _, err := f.Seek(int64(payloadLen), io.SeekCurrent); err != nil {
			return 0, 0, errors.NewStorageError(errors.CodeReadFailed, "seek past chunk payload", err)
		}
	}
	return rows, size, nil
}

// BatchInsert compresses each supplied column slice generically and appends
// it as one frame to the column's chunk file. All columns must have equal
// length; validation and compression run before any file is touched, so a
// failed batch writes nothing.
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

	return t.appendColumns(data, batchSize)
}

// AppendColumns appends column slices of possibly unequal length. Columns
// fed by different upstream connectors drain out of the hot tier at
// different depths, so the migration path cannot demand a rectangular
// batch. The tier's row count advances by the longest slice.
func (t *Tier) AppendColumns(data map[string][]interface{}) error {
	if len(data) == 0 {
		return errors.NewValidationError(errors.CodeEmptyBatch, "batch has no columns")
	}

	longest := 0
	for _, values := range data {
		if len(values) > longest {
			longest = len(values)
		}
	}
	if longest == 0 {
		return errors.NewValidationError(errors.CodeEmptyBatch, "batch has no rows")
	}
	return t.appendColumns(data, longest)
}

func (t *Tier) appendColumns(data map[string][]interface{}, batchSize int) error {
	type pending struct {
		name  string
		frame []byte
		raw   int
		rows  int
	}

	// Compress everything first; compression failures leave the tier as-is
	// so the caller (notably the migration daemon) can retry the batch.
	frames := make([]pending, 0, len(data))
	for name, values := range data {
		if len(values) == 0 {
			continue
		}
		schema, err := column.InferSlice(name, values)
		if err != nil {
			return err
		}
		compressed, rawLen, err := column.CompressChunk(schema, values)
		if err != nil {
			return errors.NewCompressionError(errors.CodeCompressionFailed,
				fmt.Sprintf("compress chunk for column %q", name), err)
		}
		frames = append(frames, pending{
			name:  name,
			frame: buildFrame(compressed, len(values)),
			raw:   rawLen,
			rows:  len(values),
		})
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range frames {
		meta, ok := t.columns[p.name]
		if !ok {
			meta = &columnMeta{path: filepath.Join(t.dir, p.name+chunkFileExt)}
			t.columns[p.name] = meta
		}
		if err := appendFrame(meta.path, p.frame); err != nil {
			return err
		}
		meta.rows += int64(p.rows)
		meta.compressedBytes += int64(len(p.frame))
		t.diskBytes += int64(len(p.frame))
		t.rawBytes += int64(p.raw)
		t.compressedTotal += int64(len(p.frame) - frameHeaderSize)
	}

	t.rowCount += int64(batchSize)
	if t.rawBytes > 0 {
		t.compressionRatio = float64(t.compressedTotal) / float64(t.rawBytes)
	}
	return nil
}

// buildFrame assembles one chunk frame with a murmur3-64 payload checksum.
func buildFrame(payload []byte, rows int) []byte {
	frame := make([]byte, frameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(frame[4:8], uint32(rows))
	binary.LittleEndian.PutUint64(frame[8:16], murmur3.Sum64(payload))
	copy(frame[frameHeaderSize:], payload)
	return frame
}

// appendFrame appends a frame to an append-only chunk file and syncs it.
func appendFrame(path string, frame []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return errors.NewStorageError(errors.CodeWriteFailed, "open chunk file", err)
	}
	defer f.Close()

	if _, err := f.Write(frame); err != nil {
		return errors.NewStorageError(errors.CodeWriteFailed, "append chunk frame", err)
	}
	if err := f.Sync(); err != nil {
		return errors.NewStorageError(errors.CodeWriteFailed, "sync chunk file", err)
	}
	return nil
}

// ReadColumn reconstructs a column by scanning its full chunk file:
// every frame is checksum-verified, decompressed, decoded, and concatenated
// in append order. A column with no file reads as empty.
func (t *Tier) ReadColumn(name string) ([]interface{}, error) {
	t.mu.Lock()
	meta, ok := t.columns[name]
	t.mu.Unlock()
	if !ok {
		return []interface{}{}, nil
	}

	f, err := os.Open(meta.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []interface{}{}, nil
		}
		return nil, errors.NewStorageError(errors.CodeReadFailed, "open chunk file", err)
	}
	defer f.Close()

	var values []interface{}
	var header [frameHeaderSize]byte
	for {
		if _, err := io.ReadFull(f, header[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, errors.NewStorageError(errors.CodeReadFailed, "read chunk frame", err)
		}

		payloadLen := binary.LittleEndian.Uint32(header[0:4])
		checksum := binary.LittleEndian.Uint64(header[8:16])

		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(f, payload); err != nil {
			// Truncated trailing frame: stop at the last complete frame.
			break
		}
		if murmur3.Sum64(payload) != checksum {
			return nil, errors.NewStorageError(errors.CodeChecksumFailed,
				fmt.Sprintf("chunk checksum mismatch in column %q", name), nil)
		}

		_, chunk, err := column.Decompress(payload)
		if err != nil {
			return nil, err
		}
		values = append(values, chunk...)
	}

	if values == nil {
		values = []interface{}{}
	}
	return values, nil
}

// Materialize reads the requested columns, fanning the per-column scans out
// in parallel. Missing columns appear as empty slices.
func (t *Tier) Materialize(columns []string) (map[string][]interface{}, error) {
	results := make([][]interface{}, len(columns))

	var g errgroup.Group
	for i, name := range columns {
		i, name := i, name
		g.Go(func() error {
			values, err := t.ReadColumn(name)
			if err != nil {
				return err
			}
			results[i] = values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]interface{}, len(columns))
	for i, name := range columns {
		out[name] = results[i]
	}
	return out, nil
}

// Stats reports row count, disk usage in bytes, and the running compression
// ratio (compressed bytes over raw bytes; 1.0 before any write).
func (t *Tier) Stats() (rows int64, diskBytes int64, ratio float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rowCount, t.diskBytes, t.compressionRatio
}

// RowCount returns the logical rows inserted into the tier.
func (t *Tier) RowCount() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rowCount
}
