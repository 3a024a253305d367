package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	courier "github.com/Tap30/courier-go"
	"github.com/Tap30/courier-go/adapters"
	"github.com/Tap30/courier-go/adapters/sqlite"
)

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api_key: phc_123
host: https://ingest.example.com
namespace: shop
log_level: DEBUG
storage:
  driver: sqlite
  path: /tmp/shop.db
queue:
  flush_interval: 5s
  flush_size: 20
  max_queue_size: 500
  flush_all_timeout: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "phc_123", cfg.APIKey)
	assert.Equal(t, "https://ingest.example.com", cfg.Host)
	assert.Equal(t, "shop", cfg.Namespace)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/tmp/shop.db", cfg.Storage.Path)
	assert.Equal(t, 5*time.Second, cfg.Queue.FlushInterval)
	assert.Equal(t, 20, cfg.Queue.FlushSize)
	assert.Equal(t, 500, cfg.Queue.MaxQueueSize)
	assert.Equal(t, time.Minute, cfg.Queue.FlushAllTimeout)
}

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, courier.DefaultNamespace, cfg.Namespace)
	assert.Equal(t, DriverFile, cfg.Storage.Driver)
}

func TestLoadFromInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_key: [unclosed"), 0o644))

	_, err := LoadFrom(path)
	assert.ErrorContains(t, err, "parsing config")
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.APIKey = "key"
	cfg.Host = "http://localhost:8080"
	cfg.Queue.FlushInterval = 10 * time.Second

	require.NoError(t, Save(path, cfg))
	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyEnv(t *testing.T) {
	cfg := defaultConfig()
	cfg.APIKey = "from-file"
	cfg.Host = "http://file"
	env := map[string]string{
		EnvAPIKey:    "from-env",
		EnvNamespace: "env-ns",
	}

	cfg.ApplyEnv(func(k string) string { return env[k] })
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, "http://file", cfg.Host)
	assert.Equal(t, "env-ns", cfg.Namespace)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	assert.ErrorContains(t, cfg.Validate(), "api_key is required")

	cfg.APIKey = "k"
	assert.ErrorContains(t, cfg.Validate(), "host is required")

	cfg.Host = "http://localhost"
	assert.NoError(t, cfg.Validate())

	cfg.Storage.Driver = "redis"
	assert.ErrorContains(t, cfg.Validate(), "unknown storage driver")
}

func TestClientConfig(t *testing.T) {
	t.Run("file driver", func(t *testing.T) {
		dir := t.TempDir()
		cfg := defaultConfig()
		cfg.APIKey = "k"
		cfg.Host = "http://localhost"
		cfg.Namespace = "app"
		cfg.Storage.Dir = dir
		cfg.Queue.FlushSize = 3

		cc, err := cfg.ClientConfig()
		require.NoError(t, err)
		assert.Equal(t, "app", cc.Namespace)
		assert.Equal(t, 3, cc.FlushSize)
		assert.Equal(t, adapters.LogLevelWarn, cc.LogLevel)
		fs, ok := cc.StorageAdapter.(*adapters.FileStorageAdapter)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(dir, "app-courier.queue.json"), fs.QueuePath())
	})

	t.Run("sqlite driver", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.APIKey = "k"
		cfg.Host = "http://localhost"
		cfg.Storage = StorageConfig{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "c.db")}

		cc, err := cfg.ClientConfig()
		require.NoError(t, err)
		db, ok := cc.StorageAdapter.(*sqlite.StorageAdapter)
		require.True(t, ok)
		assert.NoError(t, db.Close())
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := defaultConfig().ClientConfig()
		assert.Error(t, err)
	})
}
