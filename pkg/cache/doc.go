// Package cache provides a Redis backed HTTP response cache for the GIF API
// with ETag support for conditional requests.
//
// The cache manager provides:
//
// - Expiry taken from the Expires header, DefaultTTL when it is missing
// - ETag support for conditional requests (If-None-Match)
// - Last-Modified support (If-Modified-Since)
// - Deterministic cache key generation
// - Random picks are never stored (ErrNotCacheable)
// - A per-section index of cached pages (Manager.Pages)
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Host:        "developerslife.ru",
//		Endpoint:    "/top/0",
//		QueryParams: url.Values{"json": []string{"true"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API
//	}
//
// # HTTP Response Caching
//
//	entry, err := cache.ResponseToEntry(resp)
//	if err != nil {
//		return err
//	}
//	if err := manager.Set(ctx, key, entry); err != nil {
//		return err
//	}
//
// # Conditional Requests
//
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//		// the API answers 304 when nothing changed
//	}
//
// # Metrics
//
//   - devlife_cache_hits_total{section} - Cache hits
//   - devlife_cache_misses_total{section,reason} - Cache misses
//   - devlife_cache_size_bytes{section} - Bytes written to the cache
//   - devlife_conditional_requests_total - Conditional requests sent
//   - devlife_304_responses_total - Conditional request successes
//   - devlife_cache_errors_total{operation} - Cache operation errors
package cache
