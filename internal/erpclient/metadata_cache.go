package erpclient

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// metadataCacheCapacity bounds the number of distinct (instance, model)
// entries held at once, independent of the TTL.
const metadataCacheCapacity = 512

type cachedMetadata struct {
	value     map[string]interface{}
	expiresAt time.Time
}

// MetadataCache fronts GetModelMetadata with a TTL-bounded, size-bounded
// cache. Concurrent misses for the same key collapse into a single
// underlying call via singleflight.
type MetadataCache struct {
	ttl   time.Duration
	store *lru.Cache[string, cachedMetadata]
	group singleflight.Group
}

// NewMetadataCache creates a cache with the given TTL.
func NewMetadataCache(ttl time.Duration) (*MetadataCache, error) {
	store, err := lru.New[string, cachedMetadata](metadataCacheCapacity)
	if err != nil {
		return nil, err
	}
	return &MetadataCache{ttl: ttl, store: store}, nil
}

func metadataKey(instance, model string) string {
	return instance + "\x00" + model
}

// Get returns cached metadata for (instance, model) if fresh, otherwise calls
// load, stores the result, and returns it. load is invoked at most once per
// key even under concurrent callers.
func (c *MetadataCache) Get(ctx context.Context, instance, model string, load func(context.Context) (map[string]interface{}, error)) (map[string]interface{}, error) {
	key := metadataKey(instance, model)

	if cached, ok := c.store.Get(key); ok && time.Now().Before(cached.expiresAt) {
		return cached.value, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		if cached, ok := c.store.Get(key); ok && time.Now().Before(cached.expiresAt) {
			return cached.value, nil
		}
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.store.Add(key, cachedMetadata{value: value, expiresAt: time.Now().Add(c.ttl)})
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]interface{}), nil
}

// Invalidate drops any cached entry for (instance, model).
func (c *MetadataCache) Invalidate(instance, model string) {
	c.store.Remove(metadataKey(instance, model))
}

// InvalidateInstance drops every cached entry belonging to instance.
func (c *MetadataCache) InvalidateInstance(instance string) {
	prefix := instance + "\x00"
	for _, key := range c.store.Keys() {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			c.store.Remove(key)
		}
	}
}
