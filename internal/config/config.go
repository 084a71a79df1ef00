// Package config provides unified configuration for the CortexStore server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full server configuration.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Hot tier configuration
	Hot HotConfig `json:"hot" yaml:"hot"`

	// Tiering daemon configuration
	Tiering TieringConfig `json:"tiering" yaml:"tiering"`

	// Query configuration
	Query QueryConfig `json:"query" yaml:"query"`

	// Storage configuration for cold archive replication
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the listen address
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// HotConfig holds hot tier configuration.
type HotConfig struct {
	// MaxRows caps hot-tier rows before tiering is forced (0 disables)
	MaxRows int64 `json:"max_rows" yaml:"max_rows"`
}

// TieringConfig holds migration daemon configuration.
type TieringConfig struct {
	// CheckInterval is the interval between migration checks
	CheckInterval time.Duration `json:"check_interval" yaml:"check_interval"`

	// AgeThreshold is how long a batch stays hot before migrating
	AgeThreshold time.Duration `json:"age_threshold" yaml:"age_threshold"`
}

// QueryConfig holds query executor configuration.
type QueryConfig struct {
	// CacheEntries bounds the result cache (0 = unbounded)
	CacheEntries int `json:"cache_entries" yaml:"cache_entries"`

	// StatsWindow is the retention window for access statistics
	StatsWindow time.Duration `json:"stats_window" yaml:"stats_window"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// Type is the storage type: none, local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/cortexstore",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Hot: HotConfig{
			MaxRows: 0,
		},
		Tiering: TieringConfig{
			CheckInterval: time.Minute,
			AgeThreshold:  time.Minute,
		},
		Query: QueryConfig{
			CacheEntries: 1024,
			StatsWindow:  time.Hour,
		},
		Storage: StorageConfig{
			Type: "none",
		},
	}
}

// WarmDir returns the warm tier's chunk directory.
func (c *Config) WarmDir() string {
	return filepath.Join(c.DataDir, "warm")
}

// ColdDir returns the cold tier's archive directory.
func (c *Config) ColdDir() string {
	return filepath.Join(c.DataDir, "cold")
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/cortexstore"
	}
	if c.Storage.Type == "local" && c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "replica")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch c.Storage.Type {
	case "none", "local", "s3":
	default:
		return fmt.Errorf("invalid storage type: %s (must be none, local, or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Tiering.CheckInterval < 0 {
		return fmt.Errorf("tiering.check_interval must not be negative")
	}
	if c.Tiering.AgeThreshold < 0 {
		return fmt.Errorf("tiering.age_threshold must not be negative")
	}
	if c.Hot.MaxRows < 0 {
		return fmt.Errorf("hot.max_rows must not be negative")
	}
	if c.Query.CacheEntries < 0 {
		return fmt.Errorf("query.cache_entries must not be negative")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the CORTEX_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("CORTEX_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CORTEX_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	if v := os.Getenv("CORTEX_HOT_MAX_ROWS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Hot.MaxRows)
	}

	if v := os.Getenv("CORTEX_TIERING_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Tiering.CheckInterval = d
		}
	}
	if v := os.Getenv("CORTEX_TIERING_AGE_THRESHOLD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Tiering.AgeThreshold = d
		}
	}

	if v := os.Getenv("CORTEX_QUERY_CACHE_ENTRIES"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Query.CacheEntries)
	}

	if v := os.Getenv("CORTEX_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("CORTEX_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("CORTEX_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("CORTEX_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("CORTEX_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.WarmDir(),
		c.ColdDir(),
	}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
