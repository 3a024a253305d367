package courier

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/Tap30/courier-go/adapters"
)

const maxEventNameLength = 255

// Client is the producer-facing tracker. It builds event records and hands them
// to the Dispatcher; delivery failures never surface here.
type Client struct {
	config          Config
	metadataManager *MetadataManager
	transport       *Transport
	dispatcher      *Dispatcher
	flags           *FlagStore
	loggerAdapter   LoggerAdapter
	distinctID      string
	enabled         bool
	initialized     bool
	closed          bool
	mu              sync.RWMutex
}

// NewClient validates config, fills in defaults and returns a client that must
// be initialized with Init.
func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, errors.New("APIKey is required")
	}
	if config.Host == "" {
		return nil, errors.New("Host is required")
	}
	u, err := url.Parse(config.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid Host: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid Host %q: scheme must be http or https", config.Host)
	}

	config.applyDefaults()
	if config.LoggerAdapter == nil {
		config.LoggerAdapter = adapters.NewLoggersAdapter(config.LogLevel)
	}
	if config.HTTPAdapter == nil {
		config.HTTPAdapter = adapters.NewNetHTTPAdapter(config.RequestTimeout)
	}
	if config.StorageAdapter == nil {
		config.StorageAdapter = adapters.NewFileStorageAdapter(adapters.DefaultStorageDir(), config.Namespace)
	}
	if config.LifecycleExtension == nil {
		config.LifecycleExtension = adapters.NoOpLifecycleExtension{}
	}
	if config.Scheduler == nil {
		config.Scheduler = SystemScheduler()
	}

	distinctID := config.DistinctID
	if distinctID == "" {
		distinctID = uuid.NewString()
	}

	return &Client{
		config:          config,
		metadataManager: NewMetadataManager(config.Namespace),
		transport:       NewTransport(config.Host, config.APIKey, config.HTTPAdapter, config.LoggerAdapter),
		loggerAdapter:   config.LoggerAdapter,
		distinctID:      distinctID,
		enabled:         !config.Disabled,
	}, nil
}

// Init restores the persisted queue and flag cache and starts the flush timer.
func (c *Client) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.initialized {
		return nil
	}

	c.dispatcher = NewDispatcher(c.config.dispatcherConfig(), c.transport, c.config.StorageAdapter)
	c.dispatcher.SetLoggerAdapter(c.loggerAdapter)
	c.dispatcher.SetLifecycleExtension(c.config.LifecycleExtension)
	c.dispatcher.SetScheduler(c.config.Scheduler)
	if err := c.dispatcher.Start(); err != nil {
		return err
	}
	c.flags = NewFlagStore(c.transport, c.dispatcher.LoadFlags(), c.dispatcher.SaveFlags, c.loggerAdapter)

	c.initialized = true
	c.loggerAdapter.Info("Client initialized successfully")
	return nil
}

// Capture records a custom event.
func (c *Client) Capture(name string, properties ldvalue.ValueMap) error {
	return c.capture(name, "", properties)
}

// Screen records a screen view.
func (c *Client) Screen(screenName string, properties ldvalue.ValueMap) error {
	if screenName == "" {
		return errors.New("screen name cannot be empty")
	}
	props := ldvalue.ValueMapBuildFromMap(properties).
		Set("$screen_name", ldvalue.String(screenName)).
		Build()
	return c.capture(adapters.EventScreen, "", props)
}

// Identify switches the subject to distinctID and records the change together
// with userProperties, which are set on the subject's profile.
func (c *Client) Identify(distinctID string, userProperties, properties ldvalue.ValueMap) error {
	if distinctID == "" {
		return errors.New("distinct ID cannot be empty")
	}
	if err := c.checkInitialized(); err != nil {
		return err
	}

	c.mu.Lock()
	previous := c.distinctID
	c.distinctID = distinctID
	c.mu.Unlock()

	b := ldvalue.ValueMapBuildFromMap(properties)
	if previous != distinctID {
		b.Set("$anon_distinct_id", ldvalue.String(previous))
	}
	if userProperties.Count() > 0 {
		b.Set("$set", userProperties.AsValue())
	}
	return c.capture(adapters.EventIdentify, distinctID, b.Build())
}

// Alias links alias to the current distinct ID.
func (c *Client) Alias(alias string) error {
	if alias == "" {
		return errors.New("alias cannot be empty")
	}
	distinctID := c.DistinctID()
	props := ldvalue.ValueMapBuild().
		Set("distinct_id", ldvalue.String(distinctID)).
		Set("alias", ldvalue.String(alias)).
		Build()
	return c.capture(adapters.EventCreateAlias, distinctID, props)
}

// Backgrounded records that the application moved to the background and then
// drains the queue, bounded by the FlushAll limits.
func (c *Client) Backgrounded(ctx context.Context, properties ldvalue.ValueMap) error {
	if err := c.capture(adapters.EventBackgrounded, "", properties); err != nil {
		return err
	}
	return c.FlushAll(ctx)
}

func (c *Client) capture(name, distinctID string, properties ldvalue.ValueMap) error {
	nameLen := len(name)
	if nameLen == 0 {
		return errors.New("event name cannot be empty")
	}
	if nameLen > maxEventNameLength {
		return errors.New("event name cannot exceed 255 characters")
	}

	c.mu.RLock()
	initialized, closed, enabled := c.initialized, c.closed, c.enabled
	if distinctID == "" {
		distinctID = c.distinctID
	}
	c.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if !initialized {
		return ErrNotInitialized
	}
	if !enabled {
		return nil
	}

	event := adapters.NewEvent(name, distinctID, c.metadataManager.Enrich(properties))
	c.loggerAdapter.Debug("Capturing event: %s", name)
	return c.dispatcher.Enqueue(event)
}

// Flush triggers sending one batch without waiting for the result.
func (c *Client) Flush() {
	if err := c.checkInitialized(); err != nil {
		c.loggerAdapter.Warn("Flush called before initialization")
		return
	}
	c.loggerAdapter.Debug("Flushing events")
	c.dispatcher.Flush()
}

// FlushAll sends every pending event, waiting for the outcomes. It returns
// ErrFlushIncomplete when the attempt or time budget runs out.
func (c *Client) FlushAll(ctx context.Context) error {
	if err := c.checkInitialized(); err != nil {
		return err
	}
	return c.dispatcher.FlushAll(ctx)
}

// Close drains the queue as far as FlushAll allows, then stops the dispatcher.
// Undelivered events stay in the snapshot for the next run.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.initialized || c.closed {
		c.closed = true
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.loggerAdapter.Info("Closing client")
	if err := c.dispatcher.FlushAll(ctx); err != nil {
		c.loggerAdapter.Warn("Events left undelivered at close: %v", err)
	}
	return c.dispatcher.Close(ctx)
}

// SetEnabled turns capturing on or off. Disabled clients drop events silently.
func (c *Client) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

// Enabled reports whether events are being captured.
func (c *Client) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// DistinctID returns the current subject identifier.
func (c *Client) DistinctID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.distinctID
}

// Reset forgets the identified subject and starts a new anonymous one.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.distinctID = uuid.NewString()
}

// Register sets a super-property sent with every subsequent event.
func (c *Client) Register(key string, value ldvalue.Value) error {
	keyLen := len(key)
	if keyLen == 0 {
		return errors.New("property key cannot be empty")
	}
	if keyLen > maxEventNameLength {
		return errors.New("property key cannot exceed 255 characters")
	}
	c.metadataManager.Set(key, value)
	return nil
}

// Unregister removes a super-property.
func (c *Client) Unregister(key string) {
	c.metadataManager.Unset(key)
}

// SuperProperties returns the registered super-properties.
func (c *Client) SuperProperties() ldvalue.ValueMap {
	return c.metadataManager.GetAll()
}

// ReloadFeatureFlags resolves the flags for the current distinct ID. A call
// replaced by a newer one returns ErrSuperseded and leaves the cache alone.
func (c *Client) ReloadFeatureFlags(ctx context.Context) (ldvalue.ValueMap, error) {
	if err := c.checkInitialized(); err != nil {
		return ldvalue.ValueMap{}, err
	}
	return c.flags.Resolve(ctx, c.DistinctID())
}

// FeatureFlags returns the cached flags with overrides applied.
func (c *Client) FeatureFlags() ldvalue.ValueMap {
	if c.checkInitialized() != nil {
		return ldvalue.ValueMap{}
	}
	return c.flags.All()
}

// FeatureFlag returns the cached value of key, or a null value.
func (c *Client) FeatureFlag(key string) ldvalue.Value {
	if c.checkInitialized() != nil {
		return ldvalue.Null()
	}
	return c.flags.Flag(key)
}

// IsFeatureEnabled reports whether key is on, or defaultValue if it is unknown.
func (c *Client) IsFeatureEnabled(key string, defaultValue bool) bool {
	if c.checkInitialized() != nil {
		return defaultValue
	}
	return c.flags.IsEnabled(key, defaultValue)
}

// FeatureFlagString returns the variant of key, or defaultValue.
func (c *Client) FeatureFlagString(key, defaultValue string) string {
	if c.checkInitialized() != nil {
		return defaultValue
	}
	return c.flags.String(key, defaultValue)
}

// OverrideFeatureFlag pins key to value locally. A null value removes the override.
func (c *Client) OverrideFeatureFlag(key string, value ldvalue.Value) error {
	if err := c.checkInitialized(); err != nil {
		return err
	}
	if value.IsNull() {
		c.flags.ClearOverride(key)
		return nil
	}
	c.flags.Override(key, value)
	return nil
}

// QueueState returns the dispatcher's queue contents and delivery counters.
func (c *Client) QueueState() QueueState {
	if c.checkInitialized() != nil {
		return QueueState{}
	}
	return c.dispatcher.State()
}

func (c *Client) checkInitialized() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return ErrNotInitialized
	}
	return nil
}
