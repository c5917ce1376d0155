package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/devlife-client/internal/testutil"
	"github.com/Sternrassler/devlife-client/pkg/cache"
	"github.com/Sternrassler/devlife-client/pkg/client"
	"github.com/Sternrassler/devlife-client/pkg/gif"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	mock   *testutil.MockAPI
	mr     *miniredis.Miniredis
	redis  *redis.Client
	client *client.Client
	router http.Handler
}

func setup(t *testing.T) *fixture {
	t.Helper()

	mock := testutil.NewMockAPI()
	t.Cleanup(mock.Close)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	cfg := client.DefaultConfig(redisClient, "test/1.0")
	cfg.BaseURL = mock.URL()
	cfg.RateLimit = 0
	cfg.InitialBackoff = 10 * time.Millisecond
	cfg.MaxBackoff = 20 * time.Millisecond

	apiClient, err := client.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { apiClient.Close() })

	return &fixture{
		mock:   mock,
		mr:     mr,
		redis:  redisClient,
		client: apiClient,
		router: newRouter(redisClient, apiClient, 5*time.Second),
	}
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w.Result()
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestReadyEndpoint(t *testing.T) {
	f := setup(t)

	t.Run("ready", func(t *testing.T) {
		resp := f.get(t, "/ready")
		body, _ := io.ReadAll(resp.Body)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "OK", string(body))
	})

	t.Run("not_ready_rate_limited", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("Retry-After", "30")
		require.NoError(t, f.client.RateLimiter().UpdateFromHeaders(context.Background(), headers))
		defer f.mr.FlushAll()

		resp := f.get(t, "/ready")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	})

	t.Run("not_ready_redis_down", func(t *testing.T) {
		f.mr.Close()

		resp := f.get(t, "/ready")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	f := setup(t)

	// Generate some traffic so labelled metrics exist.
	f.mock.SetCatalog(gif.SectionTop, testutil.Items(1, 3))
	f.get(t, "/api/top/0")

	resp := f.get(t, "/metrics")
	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, bodyStr, "# HELP")
	assert.Contains(t, bodyStr, "devlife_requests_total")
	assert.Contains(t, bodyStr, "devlife_rate_limit_remaining")
}

func TestPageProxy(t *testing.T) {
	f := setup(t)
	f.mock.SetCatalog(gif.SectionLatest, testutil.Items(1, 7))

	resp := f.get(t, "/api/latest/1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page gif.Page
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Len(t, page.Result, 2)
	assert.Equal(t, 6, page.Result[0].ID)
	assert.Equal(t, 7, page.TotalCount)

	// Served from cache the second time
	resp = f.get(t, "/api/latest/1")
	assert.Equal(t, "hit", resp.Header.Get(cache.HeaderCache))
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), `"totalCount":7`))
	assert.Equal(t, 1, f.mock.GetRequestCount())
}

func TestRandomProxy(t *testing.T) {
	f := setup(t)
	f.mock.SetCatalog(gif.SectionRandom, testutil.Items(5, 1))

	resp := f.get(t, "/api/random")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var item gif.Item
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&item))
	assert.Equal(t, 5, item.ID)
}

func TestPageProxy_BadRequests(t *testing.T) {
	f := setup(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/funny/0", http.StatusNotFound},
		{"/api/random/0", http.StatusNotFound},
		{"/api/top/minus", http.StatusBadRequest},
		{"/api/top/-1", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := f.get(t, tt.path)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
	assert.Equal(t, 0, f.mock.GetRequestCount())
}

func TestProxy_UpstreamFailure(t *testing.T) {
	f := setup(t)
	f.mock.SetResponse("/hot/0", testutil.NewServerErrorResponse())

	resp := f.get(t, "/api/hot/0")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestProxy_ClientErrorPassedThrough(t *testing.T) {
	f := setup(t)
	f.mock.SetResponse("/top/3", testutil.MockResponse{StatusCode: http.StatusNotFound, Body: `{"error":"nope"}`})

	resp := f.get(t, "/api/top/3")
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"nope"}`, string(body))
}

func TestProxy_Blocked(t *testing.T) {
	f := setup(t)

	headers := http.Header{}
	headers.Set("Retry-After", "30")
	require.NoError(t, f.client.RateLimiter().UpdateFromHeaders(context.Background(), headers))

	resp := f.get(t, "/api/random")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestProxy_LogsThroughRouterLogger(t *testing.T) {
	f := setup(t)
	f.mock.SetResponse("/random", testutil.NewServerErrorResponse())

	var buf bytes.Buffer
	handler := randomHandler(f.client, 5*time.Second, zerolog.New(&buf))

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/api/random", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, buf.String(), "Upstream request failed")
	assert.Contains(t, buf.String(), `"endpoint":"/random"`)
}
