package cache

import (
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/Sternrassler/devlife-client/pkg/gif"
)

// KeyPrefix starts every cache key written by this package.
const KeyPrefix = "devlife"

// CacheKey identifies a cached API response.
type CacheKey struct {
	// Host is the API host, so several API instances can share one Redis.
	Host string

	// BasePath is the path the API is mounted under (e.g. "/api" behind
	// gif-proxy). Empty for the public API.
	BasePath string

	// Endpoint is the request path relative to BasePath (e.g. "/top/0")
	Endpoint string

	// QueryParams are the query parameters (e.g. {"json": "true"})
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: devlife:host:basepath/endpoint:query1=val1:query2=val2
//
// Example:
//
//	devlife:developerslife.ru:top/0:json=true
func (k CacheKey) String() string {
	parts := k.scope()

	if p := strings.Trim(path.Join(k.BasePath, k.Endpoint), "/"); p != "" {
		parts = append(parts, p)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, key+"="+k.QueryParams.Get(key))
		}
	}

	return strings.Join(parts, ":")
}

// Route reports the section and page the endpoint addresses. ok is false
// for endpoints that are not GIF API routes.
func (k CacheKey) Route() (section gif.Section, page int, ok bool) {
	segments := strings.Split(strings.Trim(k.Endpoint, "/"), "/")

	section, err := gif.ParseSection(segments[0])
	if err != nil {
		return "", 0, false
	}

	switch {
	case len(segments) == 1 && !section.IsPaged():
		return section, 0, true
	case len(segments) == 2 && section.IsPaged():
		page, err := strconv.Atoi(segments[1])
		if err != nil || page < 0 {
			return "", 0, false
		}
		return section, page, true
	default:
		return "", 0, false
	}
}

// Cacheable reports whether responses for the key may be stored. Random
// picks never are: every request must yield a new item.
func (k CacheKey) Cacheable() bool {
	section, _, ok := k.Route()
	return !ok || section.IsPaged()
}

// indexKey is the sorted set listing the cached pages of section.
func (k CacheKey) indexKey(section gif.Section) string {
	parts := k.scope()
	if base := strings.Trim(k.BasePath, "/"); base != "" {
		parts = append(parts, base)
	}
	return strings.Join(append(parts, "index", section.String()), ":")
}

func (k CacheKey) scope() []string {
	parts := []string{KeyPrefix}
	if k.Host != "" {
		parts = append(parts, strings.ToLower(k.Host))
	}
	return parts
}
