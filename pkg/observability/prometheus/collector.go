// Package prometheus exports refresh pipeline events as Prometheus metrics.
package prometheus

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/impactrefresh/pkg/observability"
)

// Collector implements every observability hook interface.
type Collector struct {
	runsStarted   prometheus.Counter
	jobsPlanned   prometheus.Counter
	jobsStarted   *prometheus.CounterVec
	jobOutcomes   *prometheus.CounterVec
	jobLatency    *prometheus.HistogramVec
	throttles     *prometheus.CounterVec
	throttleWait  prometheus.Histogram
	cacheRequests *prometheus.CounterVec
	cacheBytes    *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	httpErrors    *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "impact_runs_started_total",
			Help: "Total number of refresh runs started",
		}),
		jobsPlanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "impact_jobs_planned_total",
			Help: "Total number of jobs planned across all runs",
		}),
		jobsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "impact_jobs_started_total",
			Help: "Total number of provider calls attempted",
		}, []string{"provider", "op"}),
		jobOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "impact_job_outcomes_total",
			Help: "Job outcomes by provider, operation and outcome",
		}, []string{"provider", "op", "outcome"}),
		jobLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "impact_job_latency_seconds",
			Help:    "Job execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "op"}),
		throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "impact_limiter_throttled_total",
			Help: "Total number of limiter refusals",
		}, []string{"provider"}),
		throttleWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "impact_limiter_wait_seconds",
			Help:    "Wait imposed by the limiter in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "impact_cache_requests_total",
			Help: "Response cache lookups by result",
		}, []string{"key_type", "result"}),
		cacheBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "impact_cache_written_bytes_total",
			Help: "Bytes written to the response cache",
		}, []string{"key_type"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "impact_http_responses_total",
			Help: "Provider HTTP responses by host and status",
		}, []string{"host", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "impact_http_latency_seconds",
			Help:    "Provider HTTP latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"host"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "impact_http_errors_total",
			Help: "Provider HTTP transport failures",
		}, []string{"host"}),
	}

	reg.MustRegister(
		c.runsStarted, c.jobsPlanned, c.jobsStarted, c.jobOutcomes, c.jobLatency,
		c.throttles, c.throttleWait, c.cacheRequests, c.cacheBytes,
		c.httpRequests, c.httpLatency, c.httpErrors,
	)
	return c
}

// Install registers c as the process-wide job, cache and HTTP hooks.
func (c *Collector) Install() {
	observability.SetJobHooks(c)
	observability.SetCacheHooks(c)
	observability.SetHTTPHooks(c)
}

func (c *Collector) OnRunStart(_ context.Context, _ string, _ int, jobs int) {
	c.runsStarted.Inc()
	c.jobsPlanned.Add(float64(jobs))
}

func (c *Collector) OnJobStart(_ context.Context, provider, op string) {
	c.jobsStarted.WithLabelValues(provider, op).Inc()
}

func (c *Collector) OnJobComplete(_ context.Context, provider, op, outcome string, d time.Duration) {
	c.jobOutcomes.WithLabelValues(provider, op, outcome).Inc()
	c.jobLatency.WithLabelValues(provider, op).Observe(d.Seconds())
}

func (c *Collector) OnThrottle(_ context.Context, provider string, wait time.Duration) {
	c.throttles.WithLabelValues(provider).Inc()
	c.throttleWait.Observe(wait.Seconds())
}

func (c *Collector) OnCacheHit(_ context.Context, keyType string) {
	c.cacheRequests.WithLabelValues(keyType, "hit").Inc()
}

func (c *Collector) OnCacheMiss(_ context.Context, keyType string) {
	c.cacheRequests.WithLabelValues(keyType, "miss").Inc()
}

func (c *Collector) OnCacheSet(_ context.Context, keyType string, size int) {
	c.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (c *Collector) OnRequest(context.Context, string, string, string) {}

func (c *Collector) OnResponse(_ context.Context, _, host, _ string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(host, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(host).Observe(d.Seconds())
}

func (c *Collector) OnError(_ context.Context, _, host, _ string, _ error) {
	c.httpErrors.WithLabelValues(host).Inc()
}

var (
	_ observability.JobHooks   = (*Collector)(nil)
	_ observability.CacheHooks = (*Collector)(nil)
	_ observability.HTTPHooks  = (*Collector)(nil)
)
