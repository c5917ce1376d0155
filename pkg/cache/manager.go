package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/devlife-client/pkg/gif"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrNotCacheable is returned for keys whose responses must not be
	// stored, such as random picks.
	ErrNotCacheable = errors.New("endpoint is not cacheable")
)

// Manager stores API responses in Redis. Section pages are also listed in
// a per-section index so callers can see what a prefetch left behind.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{redis: redisClient}
}

// Get returns the fresh entry stored under key. Missing and expired
// entries are reported as ErrCacheMiss; unreadable ones are dropped and
// reported as ErrInvalidEntry.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	if !key.Cacheable() {
		return nil, ErrNotCacheable
	}
	label := sectionLabel(key)

	data, err := m.redis.Get(ctx, key.String()).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		CacheMisses.WithLabelValues(label, "absent").Inc()
		return nil, ErrCacheMiss
	case err != nil:
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		CacheMisses.WithLabelValues(label, "invalid").Inc()
		_ = m.Delete(ctx, key)
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Redis expiry is second-granular, the entry may outlive Expires briefly.
	if entry.IsExpired() {
		CacheMisses.WithLabelValues(label, "expired").Inc()
		_ = m.Delete(ctx, key)
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(label).Inc()
	return &entry, nil
}

// Set stores entry until its Expires time and fills in its page metadata.
// Entries that are already expired are skipped.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if !key.Cacheable() {
		return ErrNotCacheable
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}
	entry.describe(key)

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	member := key.String()
	_, err = m.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, member, data, ttl)
		if entry.Section != "" {
			pipe.ZAdd(ctx, key.indexKey(entry.Section), redis.Z{Score: float64(entry.Page), Member: member})
		}
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheSize.WithLabelValues(sectionLabel(key)).Add(float64(len(data)))
	return nil
}

// Delete removes the entry under key and its index membership.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	member := key.String()
	_, err := m.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, member)
		if section, _, ok := key.Route(); ok && section.IsPaged() {
			pipe.ZRem(ctx, key.indexKey(section), member)
		}
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// UpdateTTL moves the expiry of an existing entry, typically after a
// 304 Not Modified response carrying a new Expires header.
func (m *Manager) UpdateTTL(ctx context.Context, key CacheKey, newExpires time.Time) error {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}

	entry.Expires = newExpires
	return m.Set(ctx, key, entry)
}

// Pages lists the fresh cached pages of section, ordered by page number.
// Only Host and BasePath of scope are used. Index members whose entry has
// expired are pruned.
func (m *Manager) Pages(ctx context.Context, scope CacheKey, section gif.Section) ([]PageSummary, error) {
	index := scope.indexKey(section)

	members, err := m.redis.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		CacheErrors.WithLabelValues("index").Inc()
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	values, err := m.redis.MGet(ctx, members...).Result()
	if err != nil {
		CacheErrors.WithLabelValues("index").Inc()
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	var stale []any
	summaries := make([]PageSummary, 0, len(members))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			stale = append(stale, members[i])
			continue
		}
		var entry CacheEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.IsExpired() {
			stale = append(stale, members[i])
			continue
		}
		summaries = append(summaries, PageSummary{Page: entry.Page, Items: entry.Items, TTL: entry.TTL()})
	}

	if len(stale) > 0 {
		if err := m.redis.ZRem(ctx, index, stale...).Err(); err != nil {
			CacheErrors.WithLabelValues("index").Inc()
		}
	}
	return summaries, nil
}

// sectionLabel bounds metric cardinality to the known sections.
func sectionLabel(key CacheKey) string {
	if section, _, ok := key.Route(); ok {
		return section.String()
	}
	return "other"
}
