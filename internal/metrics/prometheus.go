package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors are the Prometheus series exported at /metrics. They live on
// their own registry so tests can create as many as they need.
type Collectors struct {
	Registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	culturalAnalysis *prometheus.CounterVec
	forwards         *prometheus.CounterVec
	persisted        *prometheus.CounterVec
	lexiconReloads   prometheus.Counter
	lexiconVariants  prometheus.Gauge
}

// NewCollectors registers the ANISA series, plus Go and process collectors,
// on a fresh registry.
func NewCollectors() *Collectors {
	reg := prometheus.NewRegistry()
	c := &Collectors{
		Registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anisa_requests_total",
			Help: "HTTP requests served, by endpoint, method and status.",
		}, []string{"endpoint", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "anisa_request_duration_seconds",
			Help:    "HTTP request latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		culturalAnalysis: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anisa_cultural_analysis_total",
			Help: "Pipeline runs by detected region and variant.",
		}, []string{"region", "variant"}),
		forwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anisa_forward_total",
			Help: "Analytics forwarding attempts by outcome.",
		}, []string{"outcome"}),
		persisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anisa_persist_total",
			Help: "Best-effort persistence writes by outcome.",
		}, []string{"outcome"}),
		lexiconReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anisa_lexicon_reloads_total",
			Help: "Successful lexicon hot reloads.",
		}),
		lexiconVariants: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "anisa_lexicon_variants",
			Help: "Variants declared by the lexicon in effect.",
		}),
	}
	reg.MustRegister(
		c.requests, c.requestDuration, c.culturalAnalysis, c.forwards, c.persisted,
		c.lexiconReloads, c.lexiconVariants,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveRequest records one served HTTP request.
func (c *Collectors) ObserveRequest(endpoint, method string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveAnalysis records one pipeline run.
func (c *Collectors) ObserveAnalysis(region, variant string) {
	if c == nil {
		return
	}
	c.culturalAnalysis.WithLabelValues(region, variant).Inc()
}

// ObserveForward records the final outcome of a forwarding attempt.
func (c *Collectors) ObserveForward(outcome string) {
	if c == nil {
		return
	}
	c.forwards.WithLabelValues(outcome).Inc()
}

// ObservePersist records the outcome of a persistence write.
func (c *Collectors) ObservePersist(outcome string) {
	if c == nil {
		return
	}
	c.persisted.WithLabelValues(outcome).Inc()
}

// SetLexiconVariants reports the size of the lexicon in effect.
func (c *Collectors) SetLexiconVariants(n int) {
	if c == nil {
		return
	}
	c.lexiconVariants.Set(float64(n))
}

// ObserveLexiconReload records a successful reload to a lexicon of n variants.
func (c *Collectors) ObserveLexiconReload(n int) {
	if c == nil {
		return
	}
	c.lexiconReloads.Inc()
	c.lexiconVariants.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format. A nil
// Collectors serves an empty registry.
func (c *Collectors) Handler() http.Handler {
	if c == nil || c.Registry == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}
