package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// BlobCache keeps downloaded image bytes for the export paths, so zipping a
// report does not refetch blobs the viewer already pulled.
type BlobCache struct {
	store *gocache.Cache
}

func New(ttl time.Duration) *BlobCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &BlobCache{
		store: gocache.New(ttl, 2*ttl),
	}
}

func (c *BlobCache) Get(key string) ([]byte, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	data, ok := v.([]byte)
	return data, ok
}

func (c *BlobCache) Set(key string, data []byte) {
	c.store.Set(key, data, gocache.DefaultExpiration)
}
