package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics exported by `rl serve`.
type Collector struct {
	gatherer prometheus.Gatherer

	EngineCalls     *prometheus.CounterVec
	EngineDurations *prometheus.HistogramVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDurations   *prometheus.HistogramVec
	GraphNodes      prometheus.Gauge
	GraphEdges      prometheus.Gauge
}

// NewCollector registers the metrics against reg, or the default registry when
// reg is nil. Registering twice against the same registry reuses the existing
// collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	calls, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rl_engine_calls_total",
		Help: "Engine bridge calls, labeled by operation and outcome.",
	}, []string{"op", "outcome"}))
	if err != nil {
		return nil, err
	}
	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rl_engine_call_duration_seconds",
		Help:    "Engine bridge call latency in seconds, including payload decoding.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"op"}))
	if err != nil {
		return nil, err
	}
	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rl_http_requests_total",
		Help: "HTTP API requests, labeled by route and status code.",
	}, []string{"route", "code"}))
	if err != nil {
		return nil, err
	}
	httpDur, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rl_http_request_duration_seconds",
		Help:    "HTTP API latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"}))
	if err != nil {
		return nil, err
	}
	nodes, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rl_graph_nodes",
		Help: "Nodes in the loaded road network.",
	}))
	if err != nil {
		return nil, err
	}
	edges, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rl_graph_edges",
		Help: "Edges in the loaded road network.",
	}))
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:        gatherer,
		EngineCalls:     calls,
		EngineDurations: durations,
		HTTPRequests:    requests,
		HTTPDurations:   httpDur,
		GraphNodes:      nodes,
		GraphEdges:      edges,
	}, nil
}

// ObserveEngine records one bridge call.
func (c *Collector) ObserveEngine(op, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.EngineCalls.WithLabelValues(op, outcome).Inc()
	c.EngineDurations.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveHTTP records one API request.
func (c *Collector) ObserveHTTP(route string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	c.HTTPDurations.WithLabelValues(route).Observe(d.Seconds())
}

// SetGraphSize publishes the loaded network size.
func (c *Collector) SetGraphSize(nodes, edges int) {
	if c == nil {
		return
	}
	c.GraphNodes.Set(float64(nodes))
	c.GraphEdges.Set(float64(edges))
}

// Handler exposes a /metrics handler for the collector's registry.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector already registered with incompatible type: %w", err)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
