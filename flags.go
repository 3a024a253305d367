package courier

import (
	"context"
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// FlagStore holds the last resolved feature flags and local overrides.
//
// Only the most recent resolution may update the cache: starting a new one
// cancels the previous request, and a result that arrives after it was
// superseded is discarded with ErrSuperseded.
type FlagStore struct {
	fetcher FlagFetcher
	persist func(ldvalue.ValueMap)
	logger  LoggerAdapter

	mu         sync.Mutex
	flags      ldvalue.ValueMap
	overrides  map[string]ldvalue.Value
	generation uint64
	cancel     context.CancelFunc
}

// NewFlagStore creates a FlagStore seeded with cached. persist is called with
// every successfully resolved mapping; it may be nil.
func NewFlagStore(fetcher FlagFetcher, cached ldvalue.ValueMap, persist func(ldvalue.ValueMap), logger LoggerAdapter) *FlagStore {
	if persist == nil {
		persist = func(ldvalue.ValueMap) {}
	}
	return &FlagStore{
		fetcher:   fetcher,
		persist:   persist,
		logger:    logger,
		flags:     cached,
		overrides: make(map[string]ldvalue.Value),
	}
}

// Resolve fetches the flags for distinctID and replaces the cache on success.
// On failure the cache is left untouched.
func (s *FlagStore) Resolve(ctx context.Context, distinctID string) (ldvalue.ValueMap, error) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	reqCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	flags, err := s.fetcher.ResolveFlags(reqCtx, distinctID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.Debug("Discarding superseded flag resolution for %s", distinctID)
		return ldvalue.ValueMap{}, ErrSuperseded
	}
	cancel()
	s.cancel = nil
	if err != nil {
		s.logger.Warn("Failed to resolve feature flags: %v", err)
		return ldvalue.ValueMap{}, err
	}
	s.flags = flags
	s.persist(flags)
	return flags, nil
}

// Flag returns the value of key, preferring an override. It returns a null
// value for unknown flags.
func (s *FlagStore) Flag(key string) ldvalue.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.overrides[key]; ok {
		return v
	}
	return s.flags.Get(key)
}

// All returns the resolved flags with overrides applied.
func (s *FlagStore) All() ldvalue.ValueMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.overrides) == 0 {
		return s.flags
	}
	b := ldvalue.ValueMapBuildFromMap(s.flags)
	for k, v := range s.overrides {
		b.Set(k, v)
	}
	return b.Build()
}

// Override pins key to value locally until cleared.
func (s *FlagStore) Override(key string, value ldvalue.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[key] = value
}

// ClearOverride removes a local override.
func (s *FlagStore) ClearOverride(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides, key)
}

// IsEnabled reports whether key is on. Boolean flags are returned as is and
// multivariate flags are on when they hold a non-empty variant.
func (s *FlagStore) IsEnabled(key string, defaultValue bool) bool {
	v := s.Flag(key)
	switch v.Type() {
	case ldvalue.BoolType:
		return v.BoolValue()
	case ldvalue.StringType:
		return v.StringValue() != ""
	case ldvalue.NullType:
		return defaultValue
	default:
		return true
	}
}

// String returns the string value of key, or defaultValue if it is not a string.
func (s *FlagStore) String(key, defaultValue string) string {
	v := s.Flag(key)
	if v.Type() != ldvalue.StringType {
		return defaultValue
	}
	return v.StringValue()
}
