package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devlife_rate_limit_remaining",
		Help: "Requests remaining in the server advertised rate limit window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devlife_rate_limit_blocks_total",
		Help: "Total number of requests blocked because the server quota is exhausted",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devlife_rate_limit_throttles_total",
		Help: "Total number of requests delayed by throttling",
	})

	rateLimitBudgetWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devlife_rate_limit_budget_waits_total",
		Help: "Total number of requests that waited for the local per-second budget",
	})
)

// Headers read from API responses.
const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// defaultRemaining is assumed until the server reports otherwise.
const defaultRemaining = 100

// Config holds tracker configuration.
type Config struct {
	// RequestsPerSecond is the local budget shared by all processes using
	// the same Redis. Zero disables it.
	RequestsPerSecond int

	// ThrottleDelay is slept before each request while the server quota is
	// in the warning range.
	ThrottleDelay time.Duration
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		ThrottleDelay:     1 * time.Second,
	}
}

// Tracker monitors API rate limits and gates requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
	config Config
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger, cfg Config) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
		config: cfg,
	}
}

// GetState retrieves the server advertised state from Redis.
// Returns a healthy default when nothing has been recorded yet.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	values, err := t.redis.MGet(ctx, RedisKeyRemaining, RedisKeyResetTimestamp, RedisKeyLastUpdate).Result()
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	if values[0] == nil {
		t.logger.Debug().Msg("No rate limit state in Redis, returning default healthy state")
		state := &RateLimitState{
			Remaining:  defaultRemaining,
			LastUpdate: time.Now(),
		}
		state.UpdateHealth()
		return state, nil
	}

	remaining, err := parseIntValue(values[0])
	if err != nil {
		return nil, fmt.Errorf("parse remaining: %w", err)
	}

	state := &RateLimitState{Remaining: remaining}

	if values[1] != nil {
		reset, err := parseIntValue(values[1])
		if err != nil {
			return nil, fmt.Errorf("parse reset timestamp: %w", err)
		}
		state.ResetAt = time.Unix(int64(reset), 0)
	}

	if values[2] != nil {
		lastUpdate, err := parseIntValue(values[2])
		if err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
		state.LastUpdate = time.Unix(int64(lastUpdate), 0)
	}

	state.UpdateHealth()
	return state, nil
}

// UpdateFromHeaders records the quota advertised by a response.
// A Retry-After header means the quota is exhausted until then.
// Responses without rate limit headers leave the state untouched.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	now := time.Now()
	state := &RateLimitState{LastUpdate: now}

	if retryAfter := headers.Get(HeaderRetryAfter); retryAfter != "" {
		wait, err := parseRetryAfter(retryAfter, now)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderRetryAfter, err)
		}
		state.Remaining = 0
		state.ResetAt = now.Add(wait)
	} else {
		remainStr := headers.Get(HeaderRemaining)
		if remainStr == "" {
			return nil
		}

		remain, err := strconv.Atoi(strings.TrimSpace(remainStr))
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
		}

		resetStr := headers.Get(HeaderReset)
		if resetStr == "" {
			return fmt.Errorf("%s header missing", HeaderReset)
		}
		resetSeconds, err := strconv.Atoi(strings.TrimSpace(resetStr))
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}

		state.Remaining = remain
		state.ResetAt = now.Add(time.Duration(resetSeconds) * time.Second)
	}
	state.UpdateHealth()

	// The stored state outlives the window by a minute, then falls back to
	// the healthy default.
	ttl := state.TimeUntilReset() + time.Minute

	_, err := t.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, RedisKeyRemaining, state.Remaining, ttl)
		pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), ttl)
		pipe.Set(ctx, RedisKeyLastUpdate, state.LastUpdate.Unix(), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	rateLimitRemaining.Set(float64(state.Remaining))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit exhausted - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit low - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Bool("is_healthy", state.IsHealthy).
			Msg("Rate limit state updated")
	}

	return nil
}

// ShouldAllowRequest reports whether a request may be sent now.
// It returns false while the server quota is exhausted, sleeps while the
// quota is low, and waits for the local per-second budget.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Rate limit exhausted - blocking request")
		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() && t.config.ThrottleDelay > 0 {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("delay", t.config.ThrottleDelay).
			Msg("Rate limit low - throttling request")
		rateLimitThrottlesTotal.Inc()
		if err := sleep(ctx, t.config.ThrottleDelay); err != nil {
			return false, err
		}
	}

	if err := t.reserve(ctx); err != nil {
		return false, err
	}

	return true, nil
}

// reserve takes one slot of the per-second budget, waiting for the next
// window while the current one is full.
func (t *Tracker) reserve(ctx context.Context) error {
	limit := t.config.RequestsPerSecond
	if limit <= 0 {
		return nil
	}

	for {
		now := time.Now()
		key := RedisKeyWindowPrefix + strconv.FormatInt(now.Unix(), 10)

		var incr *redis.IntCmd
		_, err := t.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, 2*time.Second)
			return nil
		})
		if err != nil {
			return fmt.Errorf("reserve request budget: %w", err)
		}

		if incr.Val() <= int64(limit) {
			return nil
		}

		rateLimitBudgetWaitsTotal.Inc()
		wait := time.Until(time.Unix(now.Unix()+1, 0))
		t.logger.Debug().
			Int64("count", incr.Val()).
			Int("limit", limit).
			Dur("wait", wait).
			Msg("Request budget exhausted, waiting for next window")

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseIntValue(v interface{}) (int, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected type %T", v)
	}
	return strconv.Atoi(s)
}

// parseRetryAfter accepts both forms of Retry-After: delay seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, fmt.Errorf("negative delay %d", seconds)
		}
		return time.Duration(seconds) * time.Second, nil
	}

	at, err := http.ParseTime(value)
	if err != nil {
		return 0, err
	}
	if at.Before(now) {
		return 0, nil
	}
	return at.Sub(now), nil
}
