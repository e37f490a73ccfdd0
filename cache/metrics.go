package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallpaper_cache_hits_total",
		Help: "Preview cache lookups that found an entry.",
	}, []string{"strategy"})

	misses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallpaper_cache_misses_total",
		Help: "Preview cache lookups that found nothing.",
	}, []string{"strategy"})

	evictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallpaper_cache_evictions_total",
		Help: "Entries dropped from the preview cache.",
	}, []string{"strategy"})
)
