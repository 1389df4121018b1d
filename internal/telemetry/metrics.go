// Package telemetry exposes Prometheus collectors for breeding and scan
// activity.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MJE43/mogwai-breed-go/internal/genetic"
)

const namespace = "mogbreed"

// Scan outcomes used as the outcome label.
const (
	OutcomeOK      = "ok"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)

// Metrics owns a private registry so tests and multiple servers in one
// process never collide on the default registerer.
type Metrics struct {
	registry *prometheus.Registry

	breeds        *prometheus.CounterVec
	scans         *prometheus.CounterVec
	scanDuration  *prometheus.HistogramVec
	scanEvaluated *prometheus.CounterVec
	scanHits      *prometheus.CounterVec
	requests      *prometheus.CounterVec
	reqDuration   *prometheus.HistogramVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		breeds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breeds_total",
			Help:      "Single breeding events served, by pairing strategy.",
		}, []string{"breed_type"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Nonce range scans, by trait and outcome.",
		}, []string{"trait", "outcome"}),
		scanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of nonce range scans.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"trait"}),
		scanEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_nonces_evaluated_total",
			Help:      "Offspring bred while scanning.",
		}, []string{"trait"}),
		scanHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_hits_total",
			Help:      "Offspring that met a scan target.",
		}, []string{"trait"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route pattern and status code.",
		}, []string{"method", "route", "status"}),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.breeds, m.scans, m.scanDuration, m.scanEvaluated, m.scanHits,
		m.requests, m.reqDuration,
	)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveBreed counts one breeding event.
func (m *Metrics) ObserveBreed(bt genetic.BreedType) {
	m.breeds.WithLabelValues(bt.String()).Inc()
}

// ObserveScan records a finished scan.
func (m *Metrics) ObserveScan(trait, outcome string, d time.Duration, evaluated uint64, hits int) {
	m.scans.WithLabelValues(trait, outcome).Inc()
	m.scanDuration.WithLabelValues(trait).Observe(d.Seconds())
	m.scanEvaluated.WithLabelValues(trait).Add(float64(evaluated))
	m.scanHits.WithLabelValues(trait).Add(float64(hits))
}

// ObserveRequest records one HTTP request. route should be the router
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.reqDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
