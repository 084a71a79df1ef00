package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_dir: /var/lib/cortexstore
http:
  addr: ":9000"
tiering:
  check_interval: 30s
  age_threshold: 5m
storage:
  type: s3
  s3:
    bucket: cortex-archives
    region: eu-west-1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/cortexstore", cfg.DataDir)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, 30*time.Second, cfg.Tiering.CheckInterval)
	assert.Equal(t, 5*time.Minute, cfg.Tiering.AgeThreshold)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "cortex-archives", cfg.Storage.S3.Bucket)

	// Defaults survive where the file is silent.
	assert.Equal(t, 1024, cfg.Query.CacheEntries)
}

func TestLoadFromJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"data_dir": "/tmp/ctx", "hot": {"max_rows": 100000}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ctx", cfg.DataDir)
	assert.Equal(t, int64(100000), cfg.Hot.MaxRows)
}

func TestLoadFromFileUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CORTEX_DATA_DIR", "/env/data")
	t.Setenv("CORTEX_HTTP_ADDR", ":7777")
	t.Setenv("CORTEX_TIERING_AGE_THRESHOLD", "90s")
	t.Setenv("CORTEX_HOT_MAX_ROWS", "5000")
	t.Setenv("CORTEX_STORAGE_TYPE", "local")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	assert.Equal(t, "/env/data", cfg.DataDir)
	assert.Equal(t, ":7777", cfg.HTTP.Addr)
	assert.Equal(t, 90*time.Second, cfg.Tiering.AgeThreshold)
	assert.Equal(t, int64(5000), cfg.Hot.MaxRows)
	assert.Equal(t, "local", cfg.Storage.Type)
}

func TestValidateRejectsBadStorageType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Type = "tape"
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresS3Bucket(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Type = "s3"
	assert.Error(t, cfg.Validate())

	cfg.Storage.S3.Bucket = "b"
	assert.NoError(t, cfg.Validate())
}

func TestResolveLocalStoragePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data"
	cfg.Storage.Type = "local"
	cfg.Resolve()

	assert.Equal(t, filepath.Join("/data", "replica"), cfg.Storage.Path)
	assert.Equal(t, filepath.Join("/data", "warm"), cfg.WarmDir())
	assert.Equal(t, filepath.Join("/data", "cold"), cfg.ColdDir())
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "store")
	cfg.Resolve()

	require.NoError(t, cfg.EnsureDirectories())
	for _, dir := range []string{cfg.DataDir, cfg.WarmDir(), cfg.ColdDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
