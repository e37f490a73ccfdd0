package cache

import (
	"context"

	"github.com/jellydator/ttlcache/v3"
)

// Capped keeps at most a fixed number of entries, dropping the least recently
// used one when full. Memory use is not considered.
type Capped[K comparable, V any] struct {
	c *ttlcache.Cache[K, V]
}

func NewCapped[K comparable, V any](capacity int) *Capped[K, V] {
	c := ttlcache.New[K, V](
		ttlcache.WithCapacity[K, V](uint64(capacity)),
		ttlcache.WithTTL[K, V](ttlcache.NoTTL),
	)
	c.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, _ *ttlcache.Item[K, V]) {
		if reason == ttlcache.EvictionReasonCapacityReached {
			evictions.WithLabelValues(StrategyCount).Inc()
		}
	})
	return &Capped[K, V]{c: c}
}

func (c *Capped[K, V]) Get(key K) (V, bool) {
	item := c.c.Get(key)
	if item == nil {
		misses.WithLabelValues(StrategyCount).Inc()
		var v V
		return v, false
	}
	hits.WithLabelValues(StrategyCount).Inc()
	return item.Value(), true
}

func (c *Capped[K, V]) Put(key K, value V) {
	c.c.Set(key, value, ttlcache.NoTTL)
}

func (c *Capped[K, V]) Len() int {
	return c.c.Len()
}
