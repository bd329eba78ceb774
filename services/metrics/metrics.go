package metricsvc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a registry so that several instances (tests) never collide.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	gatewayCalls        *prometheus.CounterVec
	gatewayDuration     *prometheus.HistogramVec
	messagesTotal       *prometheus.CounterVec
	recordsUpserted     prometheus.Counter
}

func New(build string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "google_gateway_calls_total",
			Help: "Google gateway calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "google_gateway_call_duration_seconds",
			Help:    "Google gateway call latencies in seconds.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Outbound messages by channel and outcome.",
		}, []string{"channel", "outcome"}),
		recordsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recitation_records_upserted_total",
			Help: "Recitation records written.",
		}),
	}
	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "halaqat_build_info",
		Help: "Build information.",
	}, []string{"build"})
	buildInfo.WithLabelValues(build).Set(1)

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		buildInfo,
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.gatewayCalls,
		m.gatewayDuration,
		m.messagesTotal,
		m.recordsUpserted,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HTTPStarted marks a request in flight and returns the function recording its outcome.
// path is the route pattern, not the raw url.
func (m *Metrics) HTTPStarted(method, path string) func(status int) {
	m.httpInFlight.Inc()
	start := time.Now()
	return func(status int) {
		s := strconv.Itoa(status)
		m.httpRequestDuration.WithLabelValues(method, path, s).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(method, path, s).Inc()
		m.httpInFlight.Dec()
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
