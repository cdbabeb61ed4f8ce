package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements every hook interface on Prometheus metrics kept in
// its own registry.
type Collector struct {
	registry *prometheus.Registry

	LayoutRuns        *prometheus.CounterVec
	LayoutDuration    *prometheus.HistogramVec
	LayoutRetries     prometheus.Counter
	NodesMoved        prometheus.Counter
	CoupleCorrections prometheus.Counter
	LookupsSkipped    prometheus.Counter
	Expansions        *prometheus.CounterVec
	NodesMerged       prometheus.Counter
	CacheEvents       *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// NewCollector creates the metrics under namespace and registers them.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		LayoutRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_runs_total",
			Help:      "Layout runs by engine and outcome",
		}, []string{"engine", "status"}),
		LayoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_duration_seconds",
			Help:      "Layout duration including the relaxed retry",
			Buckets:   prometheus.DefBuckets,
		}, []string{"engine"}),
		LayoutRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_relaxed_retries_total",
			Help:      "Layouts that needed the relaxed second attempt",
		}),
		NodesMoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "postprocess_nodes_moved_total",
			Help:      "Nodes translated by post-processing",
		}),
		CoupleCorrections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "postprocess_couple_corrections_total",
			Help:      "Special couples pushed apart to the minimum gap",
		}),
		LookupsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "postprocess_lookups_skipped_total",
			Help:      "Node lookups that failed during post-processing",
		}),
		Expansions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansions_total",
			Help:      "Expansion requests by kind and outcome",
		}, []string{"kind", "status"}),
		NodesMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_merged_total",
			Help:      "Nodes added to payloads by expansion",
		}),
		CacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Cache hits, misses and writes",
		}, []string{"kind", "event"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Requests to the family tree service",
		}, []string{"method", "path", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Family tree service request duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	c.registry.MustRegister(
		c.LayoutRuns,
		c.LayoutDuration,
		c.LayoutRetries,
		c.NodesMoved,
		c.CoupleCorrections,
		c.LookupsSkipped,
		c.Expansions,
		c.NodesMerged,
		c.CacheEvents,
		c.HTTPRequests,
		c.HTTPDuration,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Register installs c as the global pipeline, cache and HTTP hooks.
func (c *Collector) Register() {
	SetPipelineHooks(c)
	SetCacheHooks(c)
	SetHTTPHooks(c)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) OnLayoutStart(context.Context, string, int) {}

func (c *Collector) OnLayoutComplete(_ context.Context, engine string, attempts int, d time.Duration, err error) {
	c.LayoutRuns.WithLabelValues(engine, status(err)).Inc()
	c.LayoutDuration.WithLabelValues(engine).Observe(d.Seconds())
	if attempts > 1 {
		c.LayoutRetries.Inc()
	}
}

func (c *Collector) OnProcessComplete(_ context.Context, moved, corrections, skipped int, _ time.Duration) {
	c.NodesMoved.Add(float64(moved))
	c.CoupleCorrections.Add(float64(corrections))
	c.LookupsSkipped.Add(float64(skipped))
}

func (c *Collector) OnExpand(_ context.Context, kind string, added int, _ time.Duration, err error) {
	c.Expansions.WithLabelValues(kind, status(err)).Inc()
	c.NodesMerged.Add(float64(added))
}

func (c *Collector) OnCacheHit(_ context.Context, kind string) {
	c.CacheEvents.WithLabelValues(kind, "hit").Inc()
}

func (c *Collector) OnCacheMiss(_ context.Context, kind string) {
	c.CacheEvents.WithLabelValues(kind, "miss").Inc()
}

func (c *Collector) OnCacheSet(_ context.Context, kind string, _ int) {
	c.CacheEvents.WithLabelValues(kind, "set").Inc()
}

func (c *Collector) OnRequest(context.Context, string, string, string) {}

func (c *Collector) OnResponse(_ context.Context, method, _, path string, code int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
	c.HTTPDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (c *Collector) OnError(_ context.Context, method, _, path string, _ error) {
	c.HTTPRequests.WithLabelValues(method, path, "error").Inc()
}
