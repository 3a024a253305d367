package courier

import (
	"errors"
	"fmt"
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tap30/courier-go/adapters"
)

func TestSnapshotStore_RoundTripUpToMaxSize(t *testing.T) {
	storage := adapters.NewFileStorageAdapter(t.TempDir(), "rt")
	store := newSnapshotStore(storage, adapters.NewNoOpLoggerAdapter())

	for _, n := range []int{0, 1, 10, DefaultMaxQueueSize} {
		t.Run(fmt.Sprintf("%d events", n), func(t *testing.T) {
			events := testEvents(n)
			store.saveQueue(events)

			q := NewQueue()
			q.LoadFromSlice(store.loadQueue())
			require.Equal(t, n, q.Len())
			for _, e := range events {
				assert.True(t, q.Contains(e))
			}
		})
	}
}

func TestSnapshotStore_ErrorsAreLoggedAndSwallowed(t *testing.T) {
	mockLog := ldlogtest.NewMockLog()
	defer mockLog.DumpIfTestFailed(t)
	storage := &mockStorageAdapter{err: errors.New("read-only file system")}
	store := newSnapshotStore(storage, adapters.WrapLoggers(mockLog.Loggers))

	store.saveQueue(testEvents(2))
	assert.Empty(t, store.loadQueue())
	store.saveFlags(ldvalue.ValueMapBuild().Set("a", ldvalue.Bool(true)).Build())
	assert.Equal(t, 0, store.loadFlags().Count())

	mockLog.AssertMessageMatch(t, true, ldlog.Warn, "Failed to persist queue snapshot of 2 events: read-only file system")
	mockLog.AssertMessageMatch(t, true, ldlog.Warn, "Failed to load queue snapshot")
	mockLog.AssertMessageMatch(t, true, ldlog.Warn, "Failed to persist feature flags")
	mockLog.AssertMessageMatch(t, true, ldlog.Warn, "Failed to load feature flags")
}

func TestSnapshotStore_CloseOnlyClosers(t *testing.T) {
	closer := &mockStorageAdapter{}
	newSnapshotStore(closer, adapters.NewNoOpLoggerAdapter()).close()
	assert.True(t, closer.closed)

	newSnapshotStore(adapters.NewNoOpStorageAdapter(), adapters.NewNoOpLoggerAdapter()).close()
}
