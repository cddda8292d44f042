// Package cache provides a bounded TTL string cache on top of freecache.
// Entries are evicted when they expire or when the cache runs out of room.
package cache

import (
	"time"

	"github.com/coocood/freecache"
)

// DefaultSize is the cache size in bytes used when a caller passes zero.
// freecache enforces a 512KB minimum.
const DefaultSize = 4 * 1024 * 1024

// Cache provides TTL-based in-memory caching
type Cache struct {
	fc  *freecache.Cache
	ttl time.Duration
}

// New creates a new Cache of sizeBytes with the specified default TTL
func New(sizeBytes int, ttl time.Duration) *Cache {
	if sizeBytes <= 0 {
		sizeBytes = DefaultSize
	}
	return &Cache{
		fc:  freecache.NewCache(sizeBytes),
		ttl: ttl,
	}
}

// Get retrieves a value from the cache.
// Returns the value and true if found and not expired, "" and false otherwise.
func (c *Cache) Get(key string) (string, bool) {
	v, err := c.fc.Get([]byte(key))
	if err != nil {
		return "", false
	}
	return string(v), true
}

// Set stores a value in the cache with the default TTL.
// TTLs are rounded up to whole seconds; a non-positive TTL never expires.
func (c *Cache) Set(key, value string) error {
	return c.fc.Set([]byte(key), []byte(value), ttlSeconds(c.ttl))
}

func ttlSeconds(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	secs := int((ttl + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
