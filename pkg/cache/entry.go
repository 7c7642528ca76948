package cache

import (
	"time"

	"github.com/goccy/go-json"
)

// Entry is a cached upstream account payload.
type Entry struct {
	// Data is the raw JSON payload returned by the upstream service
	Data json.RawMessage `json:"data"`

	// ETag for conditional requests (If-None-Match)
	ETag string `json:"etag,omitempty"`

	// Expires is when the entry becomes stale
	Expires time.Time `json:"expires"`

	// LastModified from the upstream Last-Modified header
	LastModified time.Time `json:"last_modified"`

	// CachedAt is when we cached this payload
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
