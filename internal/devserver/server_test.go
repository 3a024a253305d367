package devserver

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	courier "github.com/Tap30/courier-go"
	"github.com/Tap30/courier-go/adapters"
)

func setupServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	s := New(opts)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func post(t *testing.T, url, body string) (int, ldvalue.Value) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, ldvalue.Parse(data)
}

func get(t *testing.T, url string) ldvalue.Value {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return ldvalue.Parse(data)
}

const batchBody = `{"sent_at":"2021-03-20T10:00:05Z","api_key":"key","batch":[
	{"timestamp":"2021-03-20T10:00:00Z","message_id":"m1","distinct_id":"u1","event":"open","properties":{"a":1}},
	{"timestamp":"2021-03-20T10:00:01Z","message_id":"m2","distinct_id":"u2","event":"click","properties":{}}
]}`

func TestBatchStoresEvents(t *testing.T) {
	s, srv := setupServer(t, Options{})

	status, body := post(t, srv.URL+"/batch", batchBody)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, body.GetByKey("received").IntValue())

	events := s.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "open", events[0].Name)
	assert.Equal(t, 1, events[0].Properties.Get("a").IntValue())

	list := get(t, srv.URL+"/admin/events?event=click")
	assert.Equal(t, 1, list.GetByKey("total").IntValue())
	assert.Equal(t, "m2", list.GetByKey("events").GetByIndex(0).GetByKey("message_id").StringValue())
}

func TestBatchDeduplicatesByMessageID(t *testing.T) {
	s, srv := setupServer(t, Options{})

	post(t, srv.URL+"/batch", batchBody)
	status, body := post(t, srv.URL+"/batch", batchBody)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, body.GetByKey("received").IntValue())
	assert.Len(t, s.Events(), 2)
	assert.Equal(t, 2, s.Duplicates())
}

func TestBatchRejectsMalformedBody(t *testing.T) {
	_, srv := setupServer(t, Options{})

	status, body := post(t, srv.URL+"/batch", `{"api_key":"key"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body.GetByKey("error").StringValue(), "invalid request body")

	status, _ = post(t, srv.URL+"/batch", `not json`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestBatchChecksAPIKey(t *testing.T) {
	_, srv := setupServer(t, Options{APIKey: "secret"})

	status, _ := post(t, srv.URL+"/batch", batchBody)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestBatchTriggerError(t *testing.T) {
	s, srv := setupServer(t, Options{})

	status, _ := post(t, srv.URL+"/batch", `{"api_key":"k","batch":[
		{"timestamp":"2021-03-20T10:00:00Z","message_id":"m1","distinct_id":"u","event":"e","properties":{"trigger_error":true}}]}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Empty(t, s.Events())
}

func TestFaultInjection(t *testing.T) {
	s, srv := setupServer(t, Options{})

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/admin/fail?count=2&status=429", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	status, _ := post(t, srv.URL+"/batch", batchBody)
	assert.Equal(t, http.StatusTooManyRequests, status)
	status, _ = post(t, srv.URL+"/decide?v=2", `{"api_key":"key","distinct_id":"u"}`)
	assert.Equal(t, http.StatusTooManyRequests, status)
	status, _ = post(t, srv.URL+"/batch", batchBody)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, s.Events(), 2)
}

func TestDecideServesFlags(t *testing.T) {
	_, srv := setupServer(t, Options{})

	status, _ := post(t, srv.URL+"/admin/feature-flags", `{"beta":true,"checkout":"v2"}`)
	require.Equal(t, http.StatusOK, status)

	status, body := post(t, srv.URL+"/decide?v=2", `{"api_key":"key","distinct_id":"u1"}`)
	assert.Equal(t, http.StatusOK, status)
	flags := body.GetByKey("feature_flags")
	assert.True(t, flags.GetByKey("beta").BoolValue())
	assert.Equal(t, "v2", flags.GetByKey("checkout").StringValue())

	assert.Equal(t, "v2", get(t, srv.URL+"/admin/feature-flags").GetByKey("checkout").StringValue())
}

func TestResetEvents(t *testing.T) {
	s, srv := setupServer(t, Options{})
	post(t, srv.URL+"/batch", batchBody)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/admin/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, s.Events())
	post(t, srv.URL+"/batch", batchBody)
	assert.Len(t, s.Events(), 2, "dedupe cache is cleared too")
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

// End to end: the client delivers through retries, survives a restart with a
// persisted queue, and resolves flags against the dev server.
func TestClientEndToEnd(t *testing.T) {
	s, srv := setupServer(t, Options{APIKey: "key"})
	s.SetFlags(ldvalue.ValueMapBuild().Set("beta", ldvalue.Bool(true)).Build())
	dir := t.TempDir()

	newClient := func() *courier.Client {
		c, err := courier.NewClient(courier.Config{
			APIKey:         "key",
			Host:           srv.URL,
			Namespace:      "e2e",
			DistinctID:     "user-1",
			StorageAdapter: adapters.NewFileStorageAdapter(dir, "e2e"),
			LoggerAdapter:  adapters.NewNoOpLoggerAdapter(),
			Scheduler:      courier.NewManualScheduler(),
			RetryBackoff:   time.Millisecond,
		})
		require.NoError(t, err)
		require.NoError(t, c.Init())
		return c
	}

	// first run: the server is down, the event stays queued
	s.FailNext(100, http.StatusServiceUnavailable)
	first := newClient()
	require.NoError(t, first.Capture("signup", ldvalue.ValueMap{}))
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = first.Close(ctx)
	assert.Empty(t, s.Events())

	// second run: the server is back and the persisted event is delivered
	s.mu.Lock()
	s.failures = nil
	s.mu.Unlock()
	second := newClient()
	defer second.Close(context.Background())

	require.NoError(t, second.FlushAll(context.Background()))
	events := s.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "signup", events[0].Name)
	assert.Equal(t, "user-1", events[0].DistinctID)

	_, err := second.ReloadFeatureFlags(context.Background())
	require.NoError(t, err)
	assert.True(t, second.IsFeatureEnabled("beta", false))
}
