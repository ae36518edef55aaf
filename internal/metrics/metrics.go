package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	CacheLookups  *prometheus.CounterVec // labels: feed, outcome (hit|miss|shared)
	FeedFetches   *prometheus.CounterVec // labels: feed, result (ok|error)
	FetchDuration *prometheus.HistogramVec

	Notifications   *prometheus.CounterVec // label: result (sent|skipped|error)
	PublishDuration prometheus.Histogram
	NATSConnected   prometheus.Gauge

	CacheTTL prometheus.Gauge // seconds
}

func NewCollector(cacheTTL time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acestatus_feed_cache_lookups_total",
			Help: "Feed cache lookups by outcome.",
		}, []string{"feed", "outcome"}),
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acestatus_feed_fetches_total",
			Help: "Upstream feed fetches by result.",
		}, []string{"feed", "result"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "acestatus_feed_fetch_duration_seconds",
			Help:    "Duration of upstream feed fetches.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"feed"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acestatus_notifications_total",
			Help: "Status notifications by result.",
		}, []string{"result"}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "acestatus_nats_publish_duration_seconds",
			Help:    "Duration to publish and flush a NATS status message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "acestatus_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		CacheTTL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "acestatus_feed_cache_ttl_seconds",
			Help: "Feed cache validity window in seconds.",
		}),
	}

	reg.MustRegister(
		c.CacheLookups, c.FeedFetches, c.FetchDuration,
		c.Notifications, c.PublishDuration, c.NATSConnected,
		c.CacheTTL,
	)
	c.CacheTTL.Set(cacheTTL.Seconds())

	return c
}

// CacheLookup and UpstreamFetch satisfy feed.CacheMetrics.
func (c *Collector) CacheLookup(feed, outcome string) {
	c.CacheLookups.WithLabelValues(feed, outcome).Inc()
}

func (c *Collector) UpstreamFetch(feed string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.FeedFetches.WithLabelValues(feed, result).Inc()
	c.FetchDuration.WithLabelValues(feed).Observe(d.Seconds())
}

// NotificationResult satisfies status.Metrics.
func (c *Collector) NotificationResult(result string) {
	c.Notifications.WithLabelValues(result).Inc()
}

// NATSSetConnected and PublishObserve satisfy notify.SinkMetrics.
func (c *Collector) NATSSetConnected(b bool) {
	if b {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
