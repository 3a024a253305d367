package adapters

import "github.com/launchdarkly/go-sdk-common/v3/ldvalue"

// StorageAdapter is an interface for persisting the pending-event snapshot and the
// feature flag cache. Implement this interface to use custom storage backends.
//
// Each save replaces the previous content wholesale.
type StorageAdapter interface {
	// SaveQueue persists the full set of unsent events.
	SaveQueue(events []Event) error

	// LoadQueue retrieves the persisted events. A missing snapshot is not an error
	// and yields an empty slice.
	LoadQueue() ([]Event, error)

	// SaveFlags persists the last resolved feature flags.
	SaveFlags(flags ldvalue.ValueMap) error

	// LoadFlags retrieves the persisted feature flags. A missing snapshot is not an
	// error and yields an empty mapping.
	LoadFlags() (ldvalue.ValueMap, error)
}
