// Package metrics exposes Prometheus collectors for the service.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joeblew999/plat-filmloc/internal/content"
	"github.com/joeblew999/plat-filmloc/internal/service"
)

// Collector holds every metric on a private registry.
type Collector struct {
	registry *prometheus.Registry

	ContentFetchesTotal  *prometheus.CounterVec
	ContentFetchDuration *prometheus.HistogramVec
	MarkersRendered      prometheus.Histogram
	FavoriteTogglesTotal *prometheus.CounterVec
	HTTPRequestsInFlight prometheus.Gauge
}

// New creates a collector. sessions, if set, reports the live session count.
func New(sessions func() int) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	c := &Collector{
		registry: reg,
		ContentFetchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filmloc_content_fetches_total",
				Help: "Content API queries by operation and result",
			},
			[]string{"op", "result"},
		),
		ContentFetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filmloc_content_fetch_duration_seconds",
				Help:    "Content API query duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		MarkersRendered: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "filmloc_markers_rendered",
				Help:    "Live markers after each reconciliation",
				Buckets: []float64{0, 1, 10, 50, 100, 250, 500, 1000},
			},
		),
		FavoriteTogglesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filmloc_favorite_toggles_total",
				Help: "Favorite toggles by resulting state",
			},
			[]string{"state"},
		),
		HTTPRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "filmloc_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
	}
	if sessions != nil {
		f.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "filmloc_active_sessions",
				Help: "Number of live browser sessions",
			},
			func() float64 { return float64(sessions()) },
		)
	}
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// RecordFetch counts one content query. The Record methods are no-ops on a
// nil collector.
func (c *Collector) RecordFetch(op string, err error, d time.Duration) {
	if c == nil {
		return
	}
	result := "ok"
	switch {
	case errors.Is(err, content.ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	c.ContentFetchesTotal.WithLabelValues(op, result).Inc()
	c.ContentFetchDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordMarkers observes the live marker count.
func (c *Collector) RecordMarkers(n int) {
	if c == nil {
		return
	}
	c.MarkersRendered.Observe(float64(n))
}

// RecordToggle counts a favorite toggle.
func (c *Collector) RecordToggle(on bool) {
	if c == nil {
		return
	}
	state := "removed"
	if on {
		state = "added"
	}
	c.FavoriteTogglesTotal.WithLabelValues(state).Inc()
}

// Middleware tracks in-flight requests.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.HTTPRequestsInFlight.Inc()
		defer c.HTTPRequestsInFlight.Dec()
		next.ServeHTTP(w, r)
	})
}

// Fetcher wraps a content.Fetcher and records every call.
func (c *Collector) Fetcher(next content.Fetcher) content.Fetcher {
	return &instrumented{next: next, c: c}
}

type instrumented struct {
	next content.Fetcher
	c    *Collector
}

func (f *instrumented) FetchAll(ctx context.Context, fields content.FieldSet) ([]service.Location, error) {
	start := time.Now()
	locs, err := f.next.FetchAll(ctx, fields)
	f.c.RecordFetch("list", err, time.Since(start))
	return locs, err
}

func (f *instrumented) FetchOne(ctx context.Context, slug string) (service.Location, error) {
	start := time.Now()
	loc, err := f.next.FetchOne(ctx, slug)
	f.c.RecordFetch("get", err, time.Since(start))
	return loc, err
}
