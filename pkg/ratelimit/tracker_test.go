package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTracker(t *testing.T, cfg Config) (*Tracker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewTracker(client, zerolog.Nop(), cfg), mr
}

func TestGetState_DefaultWhenEmpty(t *testing.T) {
	tracker, _ := setupTracker(t, DefaultConfig())

	state, err := tracker.GetState(context.Background())
	require.NoError(t, err)

	assert.Equal(t, defaultRemaining, state.Remaining)
	assert.True(t, state.IsHealthy)
	assert.False(t, state.NeedsCriticalBlock())
}

func TestUpdateFromHeaders_ValidHeaders(t *testing.T) {
	tests := []struct {
		name            string
		remainHeader    string
		resetHeader     string
		expectedRemain  int
		expectedHealthy bool
	}{
		{name: "healthy state", remainHeader: "100", resetHeader: "60", expectedRemain: 100, expectedHealthy: true},
		{name: "warning state", remainHeader: "4", resetHeader: "30", expectedRemain: 4, expectedHealthy: false},
		{name: "critical state", remainHeader: "0", resetHeader: "45", expectedRemain: 0, expectedHealthy: false},
		{name: "at healthy threshold", remainHeader: "20", resetHeader: "60", expectedRemain: 20, expectedHealthy: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, _ := setupTracker(t, DefaultConfig())
			ctx := context.Background()

			headers := http.Header{}
			headers.Set(HeaderRemaining, tt.remainHeader)
			headers.Set(HeaderReset, tt.resetHeader)

			require.NoError(t, tracker.UpdateFromHeaders(ctx, headers))

			state, err := tracker.GetState(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedRemain, state.Remaining)
			assert.Equal(t, tt.expectedHealthy, state.IsHealthy)

			reset, _ := strconv.Atoi(tt.resetHeader)
			assert.WithinDuration(t, time.Now().Add(time.Duration(reset)*time.Second), state.ResetAt, 2*time.Second)
		})
	}
}

func TestUpdateFromHeaders_InvalidHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
	}{
		{name: "non-numeric remaining", headers: map[string]string{HeaderRemaining: "lots", HeaderReset: "60"}},
		{name: "missing reset", headers: map[string]string{HeaderRemaining: "10"}},
		{name: "non-numeric reset", headers: map[string]string{HeaderRemaining: "10", HeaderReset: "soon"}},
		{name: "bad retry-after", headers: map[string]string{HeaderRetryAfter: "whenever"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, _ := setupTracker(t, DefaultConfig())

			headers := http.Header{}
			for k, v := range tt.headers {
				headers.Set(k, v)
			}

			assert.Error(t, tracker.UpdateFromHeaders(context.Background(), headers))
		})
	}
}

func TestUpdateFromHeaders_NoHeadersLeavesState(t *testing.T) {
	tracker, mr := setupTracker(t, DefaultConfig())

	require.NoError(t, tracker.UpdateFromHeaders(context.Background(), http.Header{}))
	assert.False(t, mr.Exists(RedisKeyRemaining))
}

func TestUpdateFromHeaders_RetryAfter(t *testing.T) {
	tracker, mr := setupTracker(t, DefaultConfig())
	ctx := context.Background()

	headers := http.Header{}
	headers.Set(HeaderRetryAfter, "30")
	require.NoError(t, tracker.UpdateFromHeaders(ctx, headers))

	state, err := tracker.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, state.Remaining)
	assert.True(t, state.NeedsCriticalBlock())

	// State expires a minute after the window.
	ttl := mr.TTL(RedisKeyRemaining)
	assert.Greater(t, ttl, time.Minute)
	assert.LessOrEqual(t, ttl, 91*time.Second)
}

func TestShouldAllowRequest(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		tracker, _ := setupTracker(t, Config{RequestsPerSecond: 100})

		allowed, err := tracker.ShouldAllowRequest(context.Background())
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("blocked while exhausted", func(t *testing.T) {
		tracker, _ := setupTracker(t, Config{RequestsPerSecond: 100})
		ctx := context.Background()

		headers := http.Header{}
		headers.Set(HeaderRemaining, "0")
		headers.Set(HeaderReset, "60")
		require.NoError(t, tracker.UpdateFromHeaders(ctx, headers))

		allowed, err := tracker.ShouldAllowRequest(ctx)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("throttled when low", func(t *testing.T) {
		tracker, _ := setupTracker(t, Config{ThrottleDelay: 50 * time.Millisecond})
		ctx := context.Background()

		headers := http.Header{}
		headers.Set(HeaderRemaining, "2")
		headers.Set(HeaderReset, "60")
		require.NoError(t, tracker.UpdateFromHeaders(ctx, headers))

		start := time.Now()
		allowed, err := tracker.ShouldAllowRequest(ctx)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("throttle respects context", func(t *testing.T) {
		tracker, _ := setupTracker(t, Config{ThrottleDelay: 10 * time.Second})

		headers := http.Header{}
		headers.Set(HeaderRemaining, "2")
		headers.Set(HeaderReset, "60")
		require.NoError(t, tracker.UpdateFromHeaders(context.Background(), headers))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		allowed, err := tracker.ShouldAllowRequest(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, allowed)
	})
}

func TestShouldAllowRequest_Budget(t *testing.T) {
	tracker, _ := setupTracker(t, Config{RequestsPerSecond: 2})
	ctx := context.Background()

	// Align to the start of a window so the first two land in the same one.
	time.Sleep(time.Until(time.Now().Truncate(time.Second).Add(time.Second)))

	start := time.Now()
	for i := 0; i < 3; i++ {
		allowed, err := tracker.ShouldAllowRequest(ctx)
		require.NoError(t, err)
		require.True(t, allowed)
	}

	// The third request had to wait for the next window.
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}

func TestShouldAllowRequest_BudgetRespectsContext(t *testing.T) {
	tracker, mr := setupTracker(t, Config{RequestsPerSecond: 1})

	// Fill the next few windows.
	now := time.Now().Unix()
	for i := int64(0); i < 3; i++ {
		require.NoError(t, mr.Set(RedisKeyWindowPrefix+strconv.FormatInt(now+i, 10), "10"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	allowed, err := tracker.ShouldAllowRequest(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, allowed)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	d, err := parseRetryAfter("120", now)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	d, err = parseRetryAfter(now.Add(90*time.Second).Format(http.TimeFormat), now)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = parseRetryAfter(now.Add(-time.Minute).Format(http.TimeFormat), now)
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = parseRetryAfter("-5", now)
	assert.Error(t, err)
}
