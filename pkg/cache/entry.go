package cache

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Sternrassler/devlife-client/pkg/gif"
)

// CacheEntry is one stored API response plus what is known about the page
// it holds.
type CacheEntry struct {
	Data         []byte      `json:"data"`
	ETag         string      `json:"etag"`
	Expires      time.Time   `json:"expires"`
	LastModified time.Time   `json:"last_modified"`
	StatusCode   int         `json:"status_code"`
	Headers      http.Header `json:"headers"`
	CachedAt     time.Time   `json:"cached_at"`

	// Section, Page and Items describe a cached section page. They stay
	// zero for other endpoints.
	Section gif.Section `json:"section,omitempty"`
	Page    int         `json:"page,omitempty"`
	Items   int         `json:"items,omitempty"`
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, 0 once expired.
func (e *CacheEntry) TTL() time.Duration {
	return max(time.Until(e.Expires), 0)
}

// describe fills the page metadata from key and the body. A body that is
// not a page leaves Items at 0.
func (e *CacheEntry) describe(key CacheKey) {
	section, page, ok := key.Route()
	if !ok || !section.IsPaged() {
		return
	}
	e.Section = section
	e.Page = page

	var body struct {
		Result []json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(e.Data, &body); err == nil {
		e.Items = len(body.Result)
	}
}

// PageSummary describes one cached section page.
type PageSummary struct {
	Page  int
	Items int
	TTL   time.Duration
}
