package preview

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var renders = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "wallpaper_preview_renders_total",
	Help: "Background preview renders by outcome.",
}, []string{"result"})
