package courier

import (
	"io"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// snapshotStore wraps a StorageAdapter so that storage failures never reach the
// pipeline: they are logged and the operation degrades to a no-op or an empty load.
type snapshotStore struct {
	storage StorageAdapter
	logger  LoggerAdapter
}

func newSnapshotStore(storage StorageAdapter, logger LoggerAdapter) *snapshotStore {
	return &snapshotStore{storage: storage, logger: logger}
}

func (s *snapshotStore) saveQueue(events []Event) {
	if err := s.storage.SaveQueue(events); err != nil {
		s.logger.Warn("Failed to persist queue snapshot of %d events: %v", len(events), err)
	}
}

func (s *snapshotStore) loadQueue() []Event {
	events, err := s.storage.LoadQueue()
	if err != nil {
		s.logger.Warn("Failed to load queue snapshot, starting empty: %v", err)
		return nil
	}
	return events
}

func (s *snapshotStore) saveFlags(flags ldvalue.ValueMap) {
	if err := s.storage.SaveFlags(flags); err != nil {
		s.logger.Warn("Failed to persist feature flags: %v", err)
	}
}

func (s *snapshotStore) loadFlags() ldvalue.ValueMap {
	flags, err := s.storage.LoadFlags()
	if err != nil {
		s.logger.Warn("Failed to load feature flags, starting empty: %v", err)
		return ldvalue.ValueMap{}
	}
	return flags
}

// close releases the underlying storage if it holds resources.
func (s *snapshotStore) close() {
	if c, ok := s.storage.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.logger.Warn("Failed to close storage: %v", err)
		}
	}
}
