package courier

import (
	"errors"
	"fmt"
	"time"

	"github.com/Tap30/courier-go/adapters"
)

// Version is reported in the User-Agent header and the $lib_version property.
const Version = "0.3.0"

// Re-export adapter types for convenience
type (
	Event              = adapters.Event
	HTTPAdapter        = adapters.HTTPAdapter
	HTTPResponse       = adapters.HTTPResponse
	StorageAdapter     = adapters.StorageAdapter
	LoggerAdapter      = adapters.LoggerAdapter
	LogLevel           = adapters.LogLevel
	LifecycleExtension = adapters.LifecycleExtension
)

// Defaults applied by NewClient to zero-valued Config fields.
const (
	DefaultFlushInterval       = 30 * time.Second
	DefaultFlushSize           = 10
	DefaultMaxQueueSize        = 1000
	DefaultMaxBatchSize        = 100
	DefaultFlushAllMaxAttempts = 10
	DefaultFlushAllTimeout     = 30 * time.Second
	DefaultRetryBackoff        = time.Second
	DefaultMaxConcurrentSends  = 5
	DefaultRequestTimeout      = 10 * time.Second
	DefaultNamespace           = "courier"
)

var (
	// ErrNotInitialized is returned when the client is used before Init.
	ErrNotInitialized = errors.New("client not initialized. Call Init() before tracking events")
	// ErrClosed is returned when the client or dispatcher has been shut down.
	ErrClosed = errors.New("client is closed")
	// ErrFlushIncomplete is returned by FlushAll when its attempt or time budget
	// runs out with events still pending.
	ErrFlushIncomplete = errors.New("flush incomplete: events still pending")
	// ErrSuperseded is returned by a flag resolution that was replaced by a newer one.
	ErrSuperseded = errors.New("flag resolution superseded by a newer request")
)

// HTTPError reports a non-2xx response from the flag decision endpoint.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP request failed with status %d", e.Status)
}

// Config configures a Client. Only APIKey and Host are required.
type Config struct {
	APIKey string
	// Host is the base URL of the ingestion service, e.g. https://app.example.com.
	Host string
	// Namespace identifies the application; it prefixes the snapshot file names.
	Namespace string
	// DistinctID is the initial subject identifier. A random one is generated if empty.
	DistinctID string
	// Disabled drops every capture without error.
	Disabled bool

	FlushInterval       time.Duration
	FlushSize           int
	MaxQueueSize        int
	MaxBatchSize        int
	FlushAllMaxAttempts int
	FlushAllTimeout     time.Duration
	RetryBackoff        time.Duration
	MaxConcurrentSends  int
	RequestTimeout      time.Duration
	LogLevel            LogLevel

	HTTPAdapter        HTTPAdapter
	StorageAdapter     StorageAdapter
	LoggerAdapter      LoggerAdapter
	LifecycleExtension LifecycleExtension
	Scheduler          Scheduler
}

// DispatcherConfig holds the queue limits and timing used by a Dispatcher.
type DispatcherConfig struct {
	FlushInterval       time.Duration
	FlushSize           int
	MaxQueueSize        int
	MaxBatchSize        int
	FlushAllMaxAttempts int
	FlushAllTimeout     time.Duration
	RetryBackoff        time.Duration
	MaxConcurrentSends  int
}

func (c *Config) applyDefaults() {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.FlushSize <= 0 {
		c.FlushSize = DefaultFlushSize
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.FlushAllMaxAttempts <= 0 {
		c.FlushAllMaxAttempts = DefaultFlushAllMaxAttempts
	}
	if c.FlushAllTimeout <= 0 {
		c.FlushAllTimeout = DefaultFlushAllTimeout
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.MaxConcurrentSends <= 0 {
		c.MaxConcurrentSends = DefaultMaxConcurrentSends
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = adapters.LogLevelWarn
	}
}

// withDefaults replaces zero or negative fields with the package defaults.
func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.FlushSize <= 0 {
		c.FlushSize = DefaultFlushSize
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.FlushAllMaxAttempts <= 0 {
		c.FlushAllMaxAttempts = DefaultFlushAllMaxAttempts
	}
	if c.FlushAllTimeout <= 0 {
		c.FlushAllTimeout = DefaultFlushAllTimeout
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.MaxConcurrentSends <= 0 {
		c.MaxConcurrentSends = DefaultMaxConcurrentSends
	}
	return c
}

func (c Config) dispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		FlushInterval:       c.FlushInterval,
		FlushSize:           c.FlushSize,
		MaxQueueSize:        c.MaxQueueSize,
		MaxBatchSize:        c.MaxBatchSize,
		FlushAllMaxAttempts: c.FlushAllMaxAttempts,
		FlushAllTimeout:     c.FlushAllTimeout,
		RetryBackoff:        c.RetryBackoff,
		MaxConcurrentSends:  c.MaxConcurrentSends,
	}
}
