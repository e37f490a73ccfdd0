package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/awused/wallpaper-refinery/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	renders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallpaper_test_renders_total",
		Help: "test",
	}, []string{"result"})
	other := prometheus.NewCounter(prometheus.CounterOpts{Name: "unrelated_total", Help: "test"})
	reg.MustRegister(renders, other)

	renders.WithLabelValues("ok").Add(2)
	renders.WithLabelValues("error").Inc()
	other.Inc()

	buf := bytes.Buffer{}
	require.NoError(t, writeStats(&buf, reg))
	assert.Equal(t,
		"wallpaper_test_renders_total{result=\"error\"} 1\n"+
			"wallpaper_test_renders_total{result=\"ok\"} 2\n",
		buf.String())
}

func TestServeMetrics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Makes sure a labelled cache series exists
	cache.NewMemory[string, int]().Get("missing")

	addr, err := serveMetrics(ctx, "127.0.0.1:0")
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `wallpaper_cache_misses_total{strategy="memory"}`)
}

func TestServeMetricsBadAddress(t *testing.T) {
	_, err := serveMetrics(context.Background(), "not an address")
	assert.Error(t, err)
}
