package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetHTTPAdapter_Post(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(
		httphelpers.HandlerWithResponse(http.StatusOK, nil, []byte(`{"status":1}`)),
	)
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		adapter := NewNetHTTPAdapter(time.Second)
		headers := map[string]string{"User-Agent": "test-agent"}

		resp, err := adapter.Post(context.Background(), server.URL+"/batch", []byte(`{"a":1}`), headers)
		require.NoError(t, err)
		assert.True(t, resp.OK)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, `{"status":1}`, string(resp.Body))

		r := <-requestsCh
		assert.Equal(t, http.MethodPost, r.Request.Method)
		assert.Equal(t, "/batch", r.Request.URL.Path)
		assert.Equal(t, "application/json", r.Request.Header.Get("Content-Type"))
		assert.Equal(t, "test-agent", r.Request.Header.Get("User-Agent"))
		assert.Equal(t, `{"a":1}`, string(r.Body))
	})
}

func TestNetHTTPAdapter_ErrorStatus(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(http.StatusServiceUnavailable), func(server *httptest.Server) {
		adapter := NewNetHTTPAdapter(time.Second)

		resp, err := adapter.Post(context.Background(), server.URL, nil, nil)
		require.NoError(t, err)
		assert.False(t, resp.OK)
		assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	})
}

func TestNetHTTPAdapter_NetworkError(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(http.StatusOK))
	url := server.URL
	server.Close()

	adapter := NewNetHTTPAdapter(time.Second)
	_, err := adapter.Post(context.Background(), url, nil, nil)
	assert.Error(t, err)
}

func TestNetHTTPAdapter_InvalidURL(t *testing.T) {
	adapter := NewNetHTTPAdapter(time.Second)
	_, err := adapter.Post(context.Background(), "ht!tp://invalid", nil, nil)
	assert.Error(t, err)
}

func TestNetHTTPAdapter_ContextCanceled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		adapter := NewNetHTTPAdapterWithClient(server.Client())
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := adapter.Post(ctx, server.URL, nil, nil)
		assert.Error(t, err)
	})
}
