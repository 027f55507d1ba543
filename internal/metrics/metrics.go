package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation outcomes.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Breed lookup outcomes.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupError = "error"
)

// Recorder owns a private prometheus registry so several instances can coexist in one process.
type Recorder struct {
	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	operations   *prometheus.CounterVec
	opDurations  *prometheus.HistogramVec
	breedLookups *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spycats",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spycats",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spycats",
			Name:      "operations_total",
			Help:      "Engine operations by outcome.",
		}, []string{"operation", "result"}),
		opDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spycats",
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		breedLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spycats",
			Name:      "breed_lookups_total",
			Help:      "Breed validation lookups by cache outcome.",
		}, []string{"result"}),
	}
	r.registry.MustRegister(
		r.requests, r.latency, r.operations, r.opDurations, r.breedLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Observe records an engine operation outcome. A nil Recorder is a no-op.
func (r *Recorder) Observe(operation, result string, d time.Duration) {
	if r == nil || operation == "" {
		return
	}
	r.operations.WithLabelValues(operation, result).Inc()
	r.opDurations.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveRequest records a served HTTP request.
func (r *Recorder) ObserveRequest(method, route string, code int, d time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.latency.WithLabelValues(method, route).Observe(d.Seconds())
}

// BreedLookup counts a breed validation by cache outcome.
func (r *Recorder) BreedLookup(result string) {
	if r == nil {
		return
	}
	r.breedLookups.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry for gathering in tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the prometheus text exposition.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
