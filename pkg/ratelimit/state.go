// Package ratelimit gates requests to the GIF API. It combines a local
// request budget (requests per second, counted in Redis so several
// processes share it) with the quota the server advertises through
// X-RateLimit-Remaining, X-RateLimit-Reset and Retry-After.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyRemaining      = "devlife:rate_limit:remaining"
	RedisKeyResetTimestamp = "devlife:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "devlife:rate_limit:last_update"

	// RedisKeyWindowPrefix is followed by the unix second of the window.
	RedisKeyWindowPrefix = "devlife:rate_limit:window:"
)

// Thresholds for rate limit decisions, in requests remaining.
const (
	// ThresholdCritical blocks all requests until the reset when the
	// remaining quota falls below it.
	ThresholdCritical = 1

	// ThresholdWarning throttles requests when the remaining quota falls
	// below it.
	ThresholdWarning = 5

	// ThresholdHealthy marks normal operation.
	ThresholdHealthy = 20
)

// RateLimitState is the server advertised quota, shared via Redis.
type RateLimitState struct {
	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the server window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= ThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// Expired reports whether the server window has already reset, making
// Remaining meaningless.
func (s *RateLimitState) Expired() bool {
	return !s.ResetAt.IsZero() && !time.Now().Before(s.ResetAt)
}

// NeedsCriticalBlock returns true if requests should be blocked until the reset.
func (s *RateLimitState) NeedsCriticalBlock() bool {
	return s.Remaining < ThresholdCritical && !s.Expired()
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *RateLimitState) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && !s.NeedsCriticalBlock() && !s.Expired()
}

// TimeUntilReset returns the duration until the window resets, or 0.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates IsHealthy from Remaining.
func (s *RateLimitState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}
