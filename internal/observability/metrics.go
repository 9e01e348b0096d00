package observability

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nearby"

// Metrics is the service-wide prometheus surface. Every method is nil-safe
// so components can record unconditionally.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests  *prometheus.CounterVec
	apiLatency   *prometheus.HistogramVec
	jobsFinished *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	jobsEnqueued *prometheus.CounterVec
	queueDepth   *prometheus.GaugeVec
	oracleCalls  *prometheus.CounterVec
	oracleTime   *prometheus.HistogramVec
	oracleWait   prometheus.Histogram
	events       *prometheus.CounterVec
	wsClients    prometheus.Gauge
	wsDropped    prometheus.Counter
}

var current atomic.Pointer[Metrics]

// Current returns the process metrics, or nil before Init.
func Current() *Metrics { return current.Load() }

// Init builds and installs the process metrics.
func Init() *Metrics {
	m := NewMetrics()
	current.Store(m)
	return m
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Analysis jobs by kind and outcome",
		}, []string{"kind", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Analysis job execution time",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"kind"}),
		jobsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "enqueued_total",
			Help:      "Enqueue calls by kind and outcome (created, rearmed, promoted, deduped)",
		}, []string{"kind", "outcome"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "queue_depth",
			Help:      "Job rows by status",
		}, []string{"status"}),
		oracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "calls_total",
			Help:      "Oracle calls by operation and status",
		}, []string{"op", "status"}),
		oracleTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "call_duration_seconds",
			Help:      "Oracle call latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}, []string{"op"}),
		oracleWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting on the oracle rate limiter",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60},
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Events published on the bus by kind",
		}, []string{"kind"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "clients",
			Help:      "Authenticated websocket connections",
		}),
		wsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "dropped_total",
			Help:      "Messages dropped because a client buffer was full",
		}),
	}
	reg.MustRegister(
		m.apiRequests, m.apiLatency,
		m.jobsFinished, m.jobDuration, m.jobsEnqueued, m.queueDepth,
		m.oracleCalls, m.oracleTime, m.oracleWait,
		m.events, m.wsClients, m.wsDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPIRequest(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ObserveJob(kind, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobsFinished.WithLabelValues(kind, outcome).Inc()
	m.jobDuration.WithLabelValues(kind).Observe(dur.Seconds())
}

func (m *Metrics) IncEnqueue(kind, outcome string) {
	if m == nil {
		return
	}
	m.jobsEnqueued.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) SetQueueDepth(counts map[string]int64) {
	if m == nil {
		return
	}
	m.queueDepth.Reset()
	for status, n := range counts {
		m.queueDepth.WithLabelValues(status).Set(float64(n))
	}
}

func (m *Metrics) ObserveOracleCall(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.oracleCalls.WithLabelValues(op, status).Inc()
	m.oracleTime.WithLabelValues(op).Observe(dur.Seconds())
}

func (m *Metrics) ObserveRateLimitWait(dur time.Duration) {
	if m == nil {
		return
	}
	m.oracleWait.Observe(dur.Seconds())
}

func (m *Metrics) IncEvent(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) AddWSClients(delta float64) {
	if m == nil {
		return
	}
	m.wsClients.Add(delta)
}

func (m *Metrics) IncWSDropped() {
	if m == nil {
		return
	}
	m.wsDropped.Inc()
}
