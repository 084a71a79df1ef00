// Package cold implements the archival cold tier: whole record batches
// compressed at maximum ratio into immutable, sequentially numbered archive
// files. Archives are never rewritten or merged.
package cold

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/prostudio/cortexstore/internal/column"
	"github.com/prostudio/cortexstore/internal/errors"
	"github.com/prostudio/cortexstore/internal/storage"
)

// archiveExt is the extension of cold archive files.
const archiveExt = ".zpc"

// remotePrefix is the object-storage prefix archives are replicated under.
const remotePrefix = "cold/"

// Tier is the cold archival store. A mutex serializes archive creation so
// sequence numbers are dense; finished archives are immutable and read
// without the lock.
type Tier struct {
	dir    string
	remote storage.ObjectStorage // optional archive replication

	mu           sync.Mutex
	archiveCount int
	rowCount     int64
	diskBytes    int64
}

// NewTier opens (or creates) a cold tier rooted at dir. The directory
// listing is the only inventory: archive numbering resumes after the highest
// existing archive, and disk usage is recovered from file sizes. remote may
// be nil to disable replication.
func NewTier(dir string, remote storage.ObjectStorage) (*Tier, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewStorageError(errors.CodeWriteFailed, "create cold tier directory", err)
	}

	t := &Tier{dir: dir, remote: remote}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeReadFailed, "list cold tier directory", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(entry.Name(), "archive_%d"+archiveExt, &n); err != nil {
			continue
		}
		if n >= t.archiveCount {
			t.archiveCount = n + 1
		}
		if info, err := entry.Info(); err == nil {
			t.diskBytes += info.Size()
		}
	}

	return t, nil
}

// Archive serializes the entire batch (all columns together) at maximum
// compression into a new immutable archive file. All columns must have equal
// length. When replication is configured, the finished archive is uploaded;
// an upload failure is logged and non-fatal since the local file remains
// authoritative.
func (t *Tier) Archive(ctx context.Context, data map[string][]interface{}) error {
	if len(data) == 0 {
		return errors.NewValidationError(errors.CodeEmptyBatch, "archive batch has no columns")
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
		return errors.NewValidationError(errors.CodeEmptyBatch, "archive batch has no rows")
	}

	compressed, err := column.CompressArchive(data, nil)
	if err != nil {
		return errors.NewCompressionError(errors.CodeCompressionFailed, "compress archive batch", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	name := fmt.Sprintf("archive_%d%s", t.archiveCount, archiveExt)
	path := filepath.Join(t.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return errors.NewStorageError(errors.CodeWriteFailed, "create archive file", err)
	}
	if _, err := f.Write(compressed); err != nil {
		f.Close()
		os.Remove(path)
		return errors.NewStorageError(errors.CodeWriteFailed, "write archive file", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.NewStorageError(errors.CodeWriteFailed, "sync archive file", err)
	}
	if err := f.Close(); err != nil {
		return errors.NewStorageError(errors.CodeWriteFailed, "close archive file", err)
	}

	t.archiveCount++
	t.rowCount += int64(batchSize)
	t.diskBytes += int64(len(compressed))

	if t.remote != nil {
		if err := t.remote.Upload(ctx, path, remotePrefix+name); err != nil {
			log.Printf("cold: replication of %s failed: %v", name, err)
		}
	}
	return nil
}

// ReadArchive decompresses one archive by sequence number.
func (t *Tier) ReadArchive(n int) (map[string][]interface{}, error) {
	path := filepath.Join(t.dir, fmt.Sprintf("archive_%d%s", n, archiveExt))
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeReadFailed,
			fmt.Sprintf("read archive %d", n), err)
	}
	return column.DecompressArchive(raw)
}

// Stats reports row count, disk usage in bytes, and the number of archives.
// Row counts reflect archives written by this process; archives recovered
// from disk contribute only their sizes.
func (t *Tier) Stats() (rows int64, diskBytes int64, archives int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rowCount, t.diskBytes, t.archiveCount
}
