package proxy

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var objectives = map[float64]float64{
	0.5:  0.01,  // Median (50th percentile) with ±1% error
	0.9:  0.01,  // 90th percentile with ±1% error
	0.99: 0.001, // 99th percentile with ±0.1% error
}

// Metrics collects per-request proxy metrics, partitioned by HTTP method and
// response status code. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requestsInFlight *prometheus.GaugeVec
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.SummaryVec
}

func NewMetrics(r prometheus.Registerer, namespace string) *Metrics {
	if r == nil {
		r = prometheus.NewRegistry() // This registry will be discarded.
	}
	f := promauto.With(r)

	return &Metrics{
		requestsInFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of proxy requests being served.",
		}, []string{"method"}),
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of proxy requests processed.",
		}, []string{"code", "method"}),
		requestDuration: f.NewSummaryVec(prometheus.SummaryOpts{
			Namespace:  namespace,
			Name:       "http_request_duration_seconds",
			Help:       "The proxy request latencies in seconds.",
			Objectives: objectives,
		}, []string{"code", "method"}),
	}
}

func (m *Metrics) requestStarted(method string) {
	if m == nil {
		return
	}
	m.requestsInFlight.WithLabelValues(method).Inc()
}

func (m *Metrics) requestDone(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestsInFlight.WithLabelValues(method).Dec()
	m.requestsTotal.WithLabelValues(code, method).Inc()
	m.requestDuration.WithLabelValues(code, method).Observe(elapsed.Seconds())
}
