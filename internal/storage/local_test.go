package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLocalStorage_UploadDownloadRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	src := writeTempFile(t, "archive bytes")
	require.NoError(t, store.Upload(ctx, src, "cold/archive_0.zpc"))

	exists, err := store.Exists(ctx, "cold/archive_0.zpc")
	require.NoError(t, err)
	assert.True(t, exists)

	dst := filepath.Join(t.TempDir(), "restored")
	require.NoError(t, store.Download(ctx, "cold/archive_0.zpc", dst))

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "archive bytes", string(content))
}

func TestLocalStorage_DownloadMissingObject(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	err = store.Download(context.Background(), "cold/missing.zpc", filepath.Join(t.TempDir(), "out"))
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestLocalStorage_ListObjectsByPrefix(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	src := writeTempFile(t, "x")
	require.NoError(t, store.Upload(ctx, src, "cold/archive_0.zpc"))
	require.NoError(t, store.Upload(ctx, src, "cold/archive_1.zpc"))
	require.NoError(t, store.Upload(ctx, src, "other/file"))

	objects, err := store.ListObjects(ctx, "cold/")
	require.NoError(t, err)
	assert.Equal(t, []string{"cold/archive_0.zpc", "cold/archive_1.zpc"}, objects)
}

func TestLocalStorage_DeleteIsIdempotent(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	src := writeTempFile(t, "x")
	require.NoError(t, store.Upload(ctx, src, "cold/archive_0.zpc"))
	require.NoError(t, store.Delete(ctx, "cold/archive_0.zpc"))
	require.NoError(t, store.Delete(ctx, "cold/archive_0.zpc"))

	exists, err := store.Exists(ctx, "cold/archive_0.zpc")
	require.NoError(t, err)
	assert.False(t, exists)
}
