package adapters

import "github.com/launchdarkly/go-sdk-common/v3/ldvalue"

// NoOpStorageAdapter is a storage adapter that performs no operations.
// Useful for scenarios where event persistence is not required.
type NoOpStorageAdapter struct{}

// Ensure NoOpStorageAdapter implements StorageAdapter interface
var _ StorageAdapter = (*NoOpStorageAdapter)(nil)

// NewNoOpStorageAdapter creates a new NoOpStorageAdapter instance.
func NewNoOpStorageAdapter() *NoOpStorageAdapter {
	return &NoOpStorageAdapter{}
}

// SaveQueue does nothing and always returns nil.
func (n *NoOpStorageAdapter) SaveQueue(events []Event) error {
	return nil
}

// LoadQueue returns an empty slice and nil error.
func (n *NoOpStorageAdapter) LoadQueue() ([]Event, error) {
	return []Event{}, nil
}

// SaveFlags does nothing and always returns nil.
func (n *NoOpStorageAdapter) SaveFlags(flags ldvalue.ValueMap) error {
	return nil
}

// LoadFlags returns an empty mapping and nil error.
func (n *NoOpStorageAdapter) LoadFlags() (ldvalue.ValueMap, error) {
	return ldvalue.ValueMap{}, nil
}
