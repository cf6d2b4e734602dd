package wakatime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wakareadme/internal/debug"
	"wakareadme/internal/remote"
)

const sampleStats = `{
  "data": {
    "range": "last_7_days",
    "timezone": "Europe/Berlin",
    "human_readable_total": "12 hrs 30 mins",
    "is_coding_activity_visible": true,
    "is_other_usage_visible": true,
    "languages": [
      {"name": "Go", "text": "10 hrs", "percent": 80.0, "total_seconds": 36000},
      {"name": "Markdown", "text": "2 hrs 30 mins", "percent": 20.0, "total_seconds": 9000}
    ],
    "editors": [{"name": "Neovim", "text": "12 hrs 30 mins", "percent": 100}],
    "projects": null,
    "operating_systems": [{"name": "Linux", "text": "12 hrs 30 mins", "percent": 100}]
  }
}`

func setup(t *testing.T, handler http.HandlerFunc) (*Client, context.Context) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	loader := remote.NewLoader(srv.Client(), debug.Discard(), nil)
	t.Cleanup(loader.Close)
	ctx := context.Background()
	loader.Load(ctx, Resources(srv.URL+"/api/v1/", "secret key"))

	c, err := NewClient(loader)
	require.NoError(t, err)
	return c, ctx
}

func TestClient_Stats(t *testing.T) {
	c, ctx := setup(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret key", r.URL.Query().Get("api_key"))
		switch r.URL.Path {
		case "/api/v1/users/current/stats/last_7_days":
			_, _ = w.Write([]byte(sampleStats))
		case "/api/v1/users/current/all_time_since_today":
			_, _ = w.Write([]byte(`{"data":{"text":"1,234 hrs 5 mins","total_seconds":4442700}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", stats.Timezone)
	require.Len(t, stats.Languages, 2)
	assert.Equal(t, "Go", stats.Languages[0].Name)
	assert.InDelta(t, 80.0, stats.Languages[0].Percent, 0.001)
	assert.Empty(t, stats.Projects)

	all, err := c.AllTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1,234 hrs 5 mins", all.Text)
}

func TestClient_StatsSchemaViolation(t *testing.T) {
	c, ctx := setup(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"languages":[{"name":"Go","percent":"eighty"}]}}`))
	})

	_, err := c.Stats(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")
}

func TestClient_StatsNotReady(t *testing.T) {
	c, ctx := setup(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	_, err := c.Stats(ctx)
	assert.ErrorIs(t, err, remote.ErrNotReady)
}
