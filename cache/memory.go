package cache

import (
	"container/list"
	"math"
	"runtime/debug"
	"runtime/metrics"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// MemoryStats reports how much memory the process may still use.
type MemoryStats interface {
	// Free bytes before Max is reached
	Free() uint64
	// Max bytes the process may use, 0 when there is no limit
	Max() uint64
}

// RuntimeStats measures the Go runtime against Limit. When Limit is 0 it
// falls back to GOMEMLIMIT / debug.SetMemoryLimit, then to the cgroup limit or
// physical memory.
type RuntimeStats struct {
	Limit uint64
}

var systemLimit = sync.OnceValue(systemMemory)

// parseCgroupLimit reads a cgroup v1 or v2 memory limit, 0 when unlimited.
func parseCgroupLimit(s string) uint64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "max" {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	// v1 reports "unlimited" as a huge page-aligned number
	if err != nil || n >= math.MaxInt64&^0xFFF {
		return 0
	}
	return n
}

var runtimeSamples = []string{
	"/memory/classes/total:bytes",
	"/memory/classes/heap/released:bytes",
}

func (s RuntimeStats) Max() uint64 {
	if s.Limit != 0 {
		return s.Limit
	}
	l := debug.SetMemoryLimit(-1)
	if l <= 0 || l == math.MaxInt64 {
		return systemLimit()
	}
	return uint64(l)
}

func (s RuntimeStats) Free() uint64 {
	max := s.Max()
	if max == 0 {
		return math.MaxUint64
	}

	samples := make([]metrics.Sample, len(runtimeSamples))
	for i, name := range runtimeSamples {
		samples[i].Name = name
	}
	metrics.Read(samples)

	var used uint64
	if samples[0].Value.Kind() == metrics.KindUint64 {
		used = samples[0].Value.Uint64()
	}
	if samples[1].Value.Kind() == metrics.KindUint64 {
		used -= min(used, samples[1].Value.Uint64())
	}

	if used >= max {
		return 0
	}
	return max - used
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// Memory grows without a size limit until free memory drops below either
// threshold, then drops least recently used entries until both are met again
// or it is empty.
type Memory[K comparable, V any] struct {
	mu    sync.Mutex
	order *list.List // front is the least recently used
	items map[K]*list.Element

	fixed      uint64
	percentage int
	stats      MemoryStats
	log        *zap.Logger
}

type memoryOptions struct {
	fixed      uint64
	percentage int
	stats      MemoryStats
	log        *zap.Logger
}

type MemoryOption func(*memoryOptions)

func WithFixedThreshold(bytes uint64) MemoryOption {
	return func(o *memoryOptions) {
		o.fixed = bytes
	}
}

func WithPercentageThreshold(pct int) MemoryOption {
	return func(o *memoryOptions) {
		o.percentage = pct
	}
}

func WithStats(s MemoryStats) MemoryOption {
	return func(o *memoryOptions) {
		o.stats = s
	}
}

func WithLogger(l *zap.Logger) MemoryOption {
	return func(o *memoryOptions) {
		if l != nil {
			o.log = l
		}
	}
}

func NewMemory[K comparable, V any](opts ...MemoryOption) *Memory[K, V] {
	o := memoryOptions{
		fixed:      DefaultFixedThreshold,
		percentage: DefaultPercentageThreshold,
		stats:      RuntimeStats{},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Memory[K, V]{
		order:      list.New(),
		items:      make(map[K]*list.Element),
		fixed:      o.fixed,
		percentage: o.percentage,
		stats:      o.stats,
		log:        o.log,
	}
}

// Get checks the memory thresholds even on a miss so that a cache that is
// only being read still gives memory back.
func (m *Memory[K, V]) Get(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var v V
	el, ok := m.items[key]
	if ok {
		m.order.MoveToBack(el)
		v = el.Value.(*entry[K, V]).value
		hits.WithLabelValues(StrategyMemory).Inc()
	} else {
		misses.WithLabelValues(StrategyMemory).Inc()
	}
	m.log.Debug("cache lookup", zap.Any("key", key), zap.Bool("hit", ok))

	m.evict()
	return v, ok
}

func (m *Memory[K, V]) Put(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		el.Value.(*entry[K, V]).value = value
		m.order.MoveToBack(el)
	} else {
		m.items[key] = m.order.PushBack(&entry[K, V]{key: key, value: value})
	}

	m.evict()
}

func (m *Memory[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// Reports whether key is present without touching its recency or checking
// memory.
func (m *Memory[K, V]) contains(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok
}

// Keys from least to most recently used.
func (m *Memory[K, V]) keys() []K {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]K, 0, m.order.Len())
	for el := m.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry[K, V]).key)
	}
	return out
}

// Must be called with mu held. Never fails, it stops once memory is fine or
// nothing is left to drop.
func (m *Memory[K, V]) evict() {
	count := 0
	free, max := m.stats.Free(), m.stats.Max()

	for m.order.Len() > 0 && m.pressured(free, max) {
		el := m.order.Front()
		m.order.Remove(el)
		delete(m.items, el.Value.(*entry[K, V]).key)
		count++

		m.log.Debug("cache under memory pressure",
			zap.Uint64("free", free),
			zap.Uint64("max", max),
			zap.Uint64("fixed", m.fixed),
			zap.Int("percentage", m.percentage))
		free, max = m.stats.Free(), m.stats.Max()
	}

	if count > 0 {
		evictions.WithLabelValues(StrategyMemory).Add(float64(count))
		m.log.Debug("purged cache entries", zap.Int("count", count))
	}
}

// An unbounded or unknown maximum always passes the percentage check.
func (m *Memory[K, V]) pressured(free, max uint64) bool {
	if free < m.fixed {
		return true
	}
	if max == 0 || max == math.MaxUint64 {
		return false
	}
	return float64(free)*100/float64(max) < float64(m.percentage)
}
