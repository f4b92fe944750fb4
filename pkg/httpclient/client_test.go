package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/logging"
)

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1}]`))
	}))
	defer server.Close()

	c := NewClient(DefaultConfig(), logging.Discard())
	resp, err := c.Get(context.Background(), server.URL, map[string]string{"Authorization": "Bearer token"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.ContentType)
	assert.JSONEq(t, `[{"id":1}]`, string(resp.Body))
}

func TestClient_RejectsOversizeBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Transfer-Encoding", "chunked")
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.MaxResponseSize = 16
	c := NewClient(cfg, logging.Discard())

	_, err := c.Get(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestClient_TransportError(t *testing.T) {
	c := NewClient(DefaultConfig(), logging.Discard())
	_, err := c.Get(context.Background(), "http://127.0.0.1:1", nil)
	assert.Error(t, err)
}
