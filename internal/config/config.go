// Package config loads the courier CLI configuration file, by default stored at
// ~/.courier/config.yaml, and applies COURIER_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	courier "github.com/Tap30/courier-go"
	"github.com/Tap30/courier-go/adapters"
	"github.com/Tap30/courier-go/adapters/sqlite"
)

// DefaultConfigDir is the directory under the user's home for CLI state.
const DefaultConfigDir = ".courier"

// DefaultConfigFile is the config file name within the config directory.
const DefaultConfigFile = "config.yaml"

// Environment variables that override file values.
const (
	EnvAPIKey    = "COURIER_API_KEY"
	EnvHost      = "COURIER_HOST"
	EnvNamespace = "COURIER_NAMESPACE"
)

// Storage drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// StorageConfig selects where snapshots are kept.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	// Dir holds the snapshot files of the file driver.
	Dir string `yaml:"dir,omitempty"`
	// Path is the database file of the sqlite driver.
	Path string `yaml:"path,omitempty"`
}

// QueueConfig mirrors the queue limits of courier.Config. Zero values fall back
// to the library defaults.
type QueueConfig struct {
	FlushInterval       time.Duration `yaml:"flush_interval,omitempty"`
	FlushSize           int           `yaml:"flush_size,omitempty"`
	MaxQueueSize        int           `yaml:"max_queue_size,omitempty"`
	MaxBatchSize        int           `yaml:"max_batch_size,omitempty"`
	FlushAllMaxAttempts int           `yaml:"flush_all_max_attempts,omitempty"`
	FlushAllTimeout     time.Duration `yaml:"flush_all_timeout,omitempty"`
	RequestTimeout      time.Duration `yaml:"request_timeout,omitempty"`
}

// Config represents the contents of the CLI config file.
type Config struct {
	APIKey     string        `yaml:"api_key"`
	Host       string        `yaml:"host"`
	Namespace  string        `yaml:"namespace,omitempty"`
	DistinctID string        `yaml:"distinct_id,omitempty"`
	LogLevel   string        `yaml:"log_level,omitempty"`
	Storage    StorageConfig `yaml:"storage"`
	Queue      QueueConfig   `yaml:"queue,omitempty"`
}

func defaultConfig() *Config {
	return &Config{
		Namespace: courier.DefaultNamespace,
		LogLevel:  string(adapters.LogLevelWarn),
		Storage:   StorageConfig{Driver: DriverFile},
	}
}

// DefaultPath returns ~/.courier/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// LoadFrom reads the config at path. A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverFile
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// ApplyEnv overrides file values with non-empty environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAPIKey); v != "" {
		c.APIKey = v
	}
	if v := getenv(EnvHost); v != "" {
		c.Host = v
	}
	if v := getenv(EnvNamespace); v != "" {
		c.Namespace = v
	}
}

// Validate checks the fields the client cannot default.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required (set it in the config file or %s)", EnvAPIKey)
	}
	if c.Host == "" {
		return fmt.Errorf("host is required (set it in the config file or %s)", EnvHost)
	}
	switch c.Storage.Driver {
	case DriverFile, DriverSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// OpenStorage creates the storage adapter selected by the config.
func (c *Config) OpenStorage() (adapters.StorageAdapter, error) {
	switch c.Storage.Driver {
	case DriverSQLite:
		path := c.Storage.Path
		if path == "" {
			path = filepath.Join(adapters.DefaultStorageDir(), c.namespace()+"-courier.db")
		}
		return sqlite.Open(path, c.namespace())
	case DriverFile, "":
		dir := c.Storage.Dir
		if dir == "" {
			dir = adapters.DefaultStorageDir()
		}
		return adapters.NewFileStorageAdapter(dir, c.namespace()), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
}

// ClientConfig validates the config and builds a courier.Config with storage opened.
func (c *Config) ClientConfig() (courier.Config, error) {
	if err := c.Validate(); err != nil {
		return courier.Config{}, err
	}
	storage, err := c.OpenStorage()
	if err != nil {
		return courier.Config{}, fmt.Errorf("opening storage: %w", err)
	}
	return courier.Config{
		APIKey:              c.APIKey,
		Host:                c.Host,
		Namespace:           c.namespace(),
		DistinctID:          c.DistinctID,
		LogLevel:            adapters.LogLevel(c.LogLevel),
		FlushInterval:       c.Queue.FlushInterval,
		FlushSize:           c.Queue.FlushSize,
		MaxQueueSize:        c.Queue.MaxQueueSize,
		MaxBatchSize:        c.Queue.MaxBatchSize,
		FlushAllMaxAttempts: c.Queue.FlushAllMaxAttempts,
		FlushAllTimeout:     c.Queue.FlushAllTimeout,
		RequestTimeout:      c.Queue.RequestTimeout,
		StorageAdapter:      storage,
	}, nil
}

func (c *Config) namespace() string {
	if c.Namespace == "" {
		return courier.DefaultNamespace
	}
	return c.Namespace
}
