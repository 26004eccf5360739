package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/blockberries/blockvault/blockstore"
)

// Config is the top-level configuration for a blockvault process.
type Config struct {
	BlockStore BlockStoreConfig `toml:"blockstore"`
	Logging    LoggingConfig    `toml:"logging"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// BlockStoreConfig contains block store configuration.
type BlockStoreConfig struct {
	// Location is the directory the store keeps its segment files and
	// on-disk index in.
	Location string `toml:"location"`

	// Backend is the storage backend to use ("file", "leveldb" or "badger").
	Backend string `toml:"backend"`

	// MaxFileLength is the maximum size in bytes of a single segment
	// file. It applies only to the file backend.
	MaxFileLength int64 `toml:"max_file_length"`

	// Memory, when true, uses an in-process KV engine instead of an
	// on-disk one: for a KV backend it holds the payloads, for the file
	// backend it holds the side index.
	Memory bool `toml:"memory"`

	// Network contains wire-format configuration shared with peers.
	Network NetworkConfig `toml:"network"`
}

// NetworkConfig contains wire-format configuration for the store.
type NetworkConfig struct {
	// Magic is the 4-byte magic value every segment record header
	// begins with.
	Magic uint32 `toml:"magic"`
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	// Enabled determines whether metrics collection is active.
	Enabled bool `toml:"enabled"`

	// Namespace is the Prometheus metrics namespace prefix.
	Namespace string `toml:"namespace"`

	// ListenAddr is the address to serve metrics on (e.g., ":9090").
	ListenAddr string `toml:"listen_addr"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `toml:"level"`

	// Format is the log output format ("text" or "json").
	Format string `toml:"format"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		BlockStore: BlockStoreConfig{
			Location:      "data/blocks",
			Backend:       "file",
			MaxFileLength: 134217728, // 128MB
			Memory:        false,
			Network: NetworkConfig{
				Magic: 0xD9B4BEF9,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			Namespace:  "blockvault",
			ListenAddr: ":9090",
		},
	}
}

// LoadConfig loads configuration from a TOML file.
// Missing values are filled with defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.BlockStore.Location != "" && !filepath.IsAbs(cfg.BlockStore.Location) {
		abs, err := filepath.Abs(cfg.BlockStore.Location)
		if err != nil {
			return nil, fmt.Errorf("resolving blockstore location: %w", err)
		}
		cfg.BlockStore.Location = abs
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validation errors.
var (
	ErrEmptyBlockStoreLocation  = errors.New("blockstore location cannot be empty")
	ErrInvalidBlockStoreBackend = errors.New("blockstore backend must be 'file', 'leveldb' or 'badger'")
	ErrInvalidMaxFileLength     = errors.New("blockstore max_file_length must be positive when backend is 'file'")
	ErrEmptyMetricsNamespace    = errors.New("metrics namespace cannot be empty when enabled")
	ErrEmptyMetricsListenAddr   = errors.New("metrics listen_addr cannot be empty when enabled")
	ErrInvalidLogLevel          = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat         = errors.New("log format must be 'text' or 'json'")
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.BlockStore.Validate(); err != nil {
		return fmt.Errorf("blockstore config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate checks the block store configuration for errors.
func (c *BlockStoreConfig) Validate() error {
	if c.Location == "" {
		return ErrEmptyBlockStoreLocation
	}
	switch c.Backend {
	case "file", "leveldb", "badger":
	default:
		return ErrInvalidBlockStoreBackend
	}
	if c.Backend == "file" && c.MaxFileLength <= 0 {
		return ErrInvalidMaxFileLength
	}
	return nil
}

// Validate checks the metrics configuration for errors.
func (c *MetricsConfig) Validate() error {
	if c.Enabled {
		if c.Namespace == "" {
			return ErrEmptyMetricsNamespace
		}
		if c.ListenAddr == "" {
			return ErrEmptyMetricsListenAddr
		}
	}
	return nil
}

// Validate checks the logging configuration for errors.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	switch c.Format {
	case "text", "json":
	default:
		return ErrInvalidLogFormat
	}
	return nil
}

// WriteConfigFile writes the configuration to a TOML file.
func WriteConfigFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return nil
}

// EnsureDataDirs creates the data directories specified in the configuration.
func (c *Config) EnsureDataDirs() error {
	if c.BlockStore.Location == "" || c.BlockStore.Location == "." {
		return nil
	}
	if err := os.MkdirAll(c.BlockStore.Location, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", c.BlockStore.Location, err)
	}
	return nil
}

// ToBlockStoreConfig translates the TOML-loaded configuration into a
// blockstore.Config for blockstore.Open. The side index for the file
// backend always uses leveldb; a deployment that wants badger for the
// side index should set backend = "badger" directly and drop the file
// backend's segment files entirely.
func (c *Config) ToBlockStoreConfig() blockstore.Config {
	return blockstore.Config{
		Backend:       blockstore.Backend(c.BlockStore.Backend),
		Location:      c.BlockStore.Location,
		MaxFileLength: c.BlockStore.MaxFileLength,
		Memory:        c.BlockStore.Memory,
		Magic:         c.BlockStore.Network.Magic,
		IndexEngine:   blockstore.BackendLevelDB,
	}
}
