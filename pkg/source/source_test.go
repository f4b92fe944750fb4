package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/httpclient"
	"github.com/Ramsey-B/clover/pkg/logging"
)

func TestCFBDClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/teams", r.URL.Path)
		assert.Equal(t, "2024", r.URL.Query().Get("year"))
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":194,"school":"Ohio State","classification":"fbs"}]`))
	}))
	defer server.Close()

	c := NewCFBDClient(CFBDConfig{BaseURL: server.URL + "/", APIKey: "key"}, httpclient.NewClient(httpclient.DefaultConfig(), logging.Discard()), logging.Discard())
	records, err := c.Fetch(context.Background(), "teams", map[string]string{"year": "2024"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Ohio State", records[0]["school"])
	assert.Equal(t, float64(194), records[0]["id"])
}

func TestCFBDClient_Fetch_Faults(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusBadGateway, body: `oops`},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{}`},
		{name: "not an array", status: http.StatusOK, body: `{"id":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewCFBDClient(CFBDConfig{BaseURL: server.URL}, httpclient.NewClient(httpclient.DefaultConfig(), logging.Discard()), logging.Discard())
			_, err := c.Fetch(context.Background(), "venues", nil)
			assert.Error(t, err)
		})
	}
}

func TestStaticClient(t *testing.T) {
	boom := errors.New("boom")
	c := &StaticClient{
		Records: map[string][]Record{
			"teams?year=2024": {{"id": 1}},
			"venues":          {{"id": 2}, {"id": 3}},
		},
		Errors: map[string]error{"teams?year=2025": boom},
	}

	records, err := c.Fetch(context.Background(), "teams", map[string]string{"year": "2024"})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	records, err = c.Fetch(context.Background(), "venues", nil)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = c.Fetch(context.Background(), "teams", map[string]string{"year": "2025"})
	assert.ErrorIs(t, err, boom)

	records, err = c.Fetch(context.Background(), "games", nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}
