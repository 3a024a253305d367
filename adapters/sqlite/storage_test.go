package sqlite

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tap30/courier-go/adapters"
)

func openTestStore(t *testing.T, path, namespace string) *StorageAdapter {
	t.Helper()
	s, err := Open(path, namespace)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func makeEvents(n int) []adapters.Event {
	base := time.Date(2021, 3, 20, 10, 0, 0, 0, time.UTC)
	events := make([]adapters.Event, n)
	for i := range events {
		events[i] = adapters.Event{
			Timestamp:  base.Add(time.Duration(n-i) * time.Millisecond),
			MessageID:  fmt.Sprintf("msg-%d", i),
			DistinctID: "user",
			Name:       "test",
			Properties: ldvalue.ValueMapBuild().Set("i", ldvalue.Int(i)).Build(),
		}
	}
	return events
}

func TestStorageAdapter_QueueRoundTrip(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "courier.db"), "app")
	events := makeEvents(5)

	require.NoError(t, s.SaveQueue(events))
	loaded, err := s.LoadQueue()
	require.NoError(t, err)

	require.Len(t, loaded, 5)
	// oldest first
	assert.Equal(t, "msg-4", loaded[0].MessageID)
	assert.Equal(t, "msg-0", loaded[4].MessageID)
	assert.True(t, loaded[0].Timestamp.Equal(events[4].Timestamp))
	assert.Equal(t, 4, loaded[0].Properties.Get("i").IntValue())
}

func TestStorageAdapter_SaveReplacesSnapshot(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "courier.db"), "app")

	require.NoError(t, s.SaveQueue(makeEvents(5)))
	require.NoError(t, s.SaveQueue(makeEvents(2)))
	loaded, err := s.LoadQueue()
	require.NoError(t, err)
	assert.Len(t, loaded, 2)

	require.NoError(t, s.SaveQueue(nil))
	loaded, err = s.LoadQueue()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestStorageAdapter_NamespacesAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	a := openTestStore(t, path, "a")
	b := openTestStore(t, path, "b")

	require.NoError(t, a.SaveQueue(makeEvents(3)))
	require.NoError(t, b.SaveFlags(ldvalue.ValueMapBuild().Set("x", ldvalue.Bool(true)).Build()))

	loaded, err := b.LoadQueue()
	require.NoError(t, err)
	assert.Empty(t, loaded)

	flags, err := a.LoadFlags()
	require.NoError(t, err)
	assert.Equal(t, 0, flags.Count())
}

func TestStorageAdapter_Flags(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "courier.db"), "app")

	flags, err := s.LoadFlags()
	require.NoError(t, err)
	assert.Equal(t, 0, flags.Count())

	require.NoError(t, s.SaveFlags(ldvalue.ValueMapBuild().Set("beta", ldvalue.String("on")).Build()))
	require.NoError(t, s.SaveFlags(ldvalue.ValueMapBuild().Set("beta", ldvalue.String("off")).Build()))

	flags, err = s.LoadFlags()
	require.NoError(t, err)
	assert.Equal(t, "off", flags.Get("beta").StringValue())
}

func TestStorageAdapter_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courier.db")
	s, err := Open(path, "app")
	require.NoError(t, err)
	require.NoError(t, s.SaveQueue(makeEvents(3)))
	require.NoError(t, s.Close())

	reopened := openTestStore(t, path, "app")
	loaded, err := reopened.LoadQueue()
	require.NoError(t, err)
	assert.Len(t, loaded, 3)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "courier.db"), "app")
	assert.Error(t, err)
}
