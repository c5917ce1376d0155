package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/devlife-client/pkg/client"
	"github.com/Sternrassler/devlife-client/pkg/gif"
	"github.com/Sternrassler/devlife-client/pkg/logging"
	"github.com/Sternrassler/devlife-client/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// hopHeaders are not copied from upstream responses.
var hopHeaders = []string{"Connection", "Content-Length", "Keep-Alive", "Transfer-Encoding"}

func newRouter(redisClient *redis.Client, apiClient *client.Client, timeout time.Duration) http.Handler {
	logger := logging.NewLogger("gif-proxy")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(redisClient, apiClient))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/random", randomHandler(apiClient, timeout, logger))
	mux.HandleFunc("GET /api/{section}/{page}", pageHandler(apiClient, timeout, logger))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports 503 while Redis is unreachable or the API quota is
// exhausted.
func readyHandler(redisClient *redis.Client, apiClient *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}

		state, err := apiClient.RateLimiter().GetState(ctx)
		if err != nil {
			http.Error(w, "rate limit state unavailable", http.StatusServiceUnavailable)
			return
		}
		if state.NeedsCriticalBlock() {
			w.Header().Set("Retry-After", strconv.Itoa(int(state.TimeUntilReset().Seconds())+1))
			http.Error(w, "rate limit exhausted", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

func randomHandler(apiClient *client.Client, timeout time.Duration, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proxy(w, r, apiClient, timeout, logger, "/random")
	}
}

func pageHandler(apiClient *client.Client, timeout time.Duration, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		section, err := gif.ParseSection(r.PathValue("section"))
		if err != nil || !section.IsPaged() {
			http.Error(w, fmt.Sprintf("unknown section %q", r.PathValue("section")), http.StatusNotFound)
			return
		}

		page, err := strconv.Atoi(r.PathValue("page"))
		if err != nil || page < 0 {
			http.Error(w, fmt.Sprintf("invalid page %q", r.PathValue("page")), http.StatusBadRequest)
			return
		}

		proxy(w, r, apiClient, timeout, logger, fmt.Sprintf("/%s/%d", section, page))
	}
}

// proxy fetches endpoint through the caching client and copies the
// response, body included.
func proxy(w http.ResponseWriter, r *http.Request, apiClient *client.Client, timeout time.Duration, logger zerolog.Logger, endpoint string) {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	resp, err := apiClient.Get(ctx, endpoint)
	if err != nil {
		logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Upstream request failed")
		if errors.Is(err, client.ErrRequestBlocked) {
			http.Error(w, "rate limit exhausted", http.StatusTooManyRequests)
			return
		}
		http.Error(w, fmt.Sprintf("upstream request failed: %v", err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	for _, h := range hopHeaders {
		w.Header().Del(h)
	}

	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to write response")
	}
}
