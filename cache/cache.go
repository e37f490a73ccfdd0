// Package cache holds rendered previews in memory, evicting the least
// recently used entries either when the process runs low on memory or when
// a fixed number of entries is exceeded.
package cache

import (
	"fmt"

	"go.uber.org/zap"
)

// Cache is safe for concurrent use. Get promotes the entry to most recently
// used. Both Get and Put may evict other entries before returning.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, value V)
	Len() int
}

const (
	StrategyMemory = "memory"
	StrategyCount  = "count"
)

const (
	DefaultFixedThreshold      = 20 * 1024 * 1024
	DefaultPercentageThreshold = 20
	DefaultCapacity            = 256
)

type Config struct {
	// "memory" (default) or "count"
	Strategy string
	// Entries kept by the count strategy
	Capacity int
	// Free bytes the memory strategy tries to keep available
	FixedThreshold uint64
	// Free percentage of the memory limit the memory strategy tries to keep
	PercentageThreshold int
	// Overrides the Go runtime memory limit as the maximum, 0 to use the runtime's
	MemoryLimit uint64
	Logger      *zap.Logger
}

// New builds the cache selected by c.Strategy.
func New[K comparable, V any](c Config) (Cache[K, V], error) {
	switch c.Strategy {
	case "", StrategyMemory:
		opts := []MemoryOption{
			WithStats(RuntimeStats{Limit: c.MemoryLimit}),
			WithLogger(c.Logger),
		}
		if c.FixedThreshold != 0 {
			opts = append(opts, WithFixedThreshold(c.FixedThreshold))
		}
		if c.PercentageThreshold != 0 {
			opts = append(opts, WithPercentageThreshold(c.PercentageThreshold))
		}
		return NewMemory[K, V](opts...), nil
	case StrategyCount:
		capacity := c.Capacity
		if capacity <= 0 {
			capacity = DefaultCapacity
		}
		return NewCapped[K, V](capacity), nil
	}
	return nil, fmt.Errorf("Unknown cache strategy [%s]", c.Strategy)
}
