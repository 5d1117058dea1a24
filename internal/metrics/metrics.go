// Package metrics collects Prometheus metrics for an import run. A run is a
// short-lived process, so instead of being scraped the registry is written to
// a node_exporter textfile when the run ends.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const Namespace = "so4t_import"

// Metrics holds the collectors for one run.
type Metrics struct {
	Registry *prometheus.Registry

	// APICalls counts HTTP calls by API generation, method and status
	APICalls *prometheus.CounterVec

	// APILatency measures HTTP call latency
	APILatency *prometheus.HistogramVec

	// Backoffs counts server backoff instructions honoured
	Backoffs *prometheus.CounterVec

	// BackoffSeconds sums the time spent waiting on backoff instructions
	BackoffSeconds *prometheus.CounterVec

	// RecordsCreated counts created questions, answers and articles
	RecordsCreated *prometheus.CounterVec

	// Impersonations counts impersonation token exchanges
	Impersonations prometheus.Counter
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		APICalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "api_calls_total",
			Help:      "Total API calls by API version, method and status",
		}, []string{"api", "method", "status"}),
		APILatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "api_call_duration_seconds",
			Help:      "API call latency by API version and method",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"api", "method"}),
		Backoffs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "backoffs_total",
			Help:      "Backoff instructions received from the API",
		}, []string{"api"}),
		BackoffSeconds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "backoff_seconds_total",
			Help:      "Time spent waiting on backoff instructions",
		}, []string{"api"}),
		RecordsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_created_total",
			Help:      "Questions, answers and articles created",
		}, []string{"kind"}),
		Impersonations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "impersonation_exchanges_total",
			Help:      "Impersonation token exchanges performed",
		}),
	}
}

// ObserveCall records a completed HTTP call. A zero status means the call
// never got a response.
func (m *Metrics) ObserveCall(api, method string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.APICalls.WithLabelValues(api, method, label).Inc()
	m.APILatency.WithLabelValues(api, method).Observe(elapsed.Seconds())
}

// ObserveBackoff records a honoured backoff instruction.
func (m *Metrics) ObserveBackoff(api string, wait time.Duration) {
	m.Backoffs.WithLabelValues(api).Inc()
	m.BackoffSeconds.WithLabelValues(api).Add(wait.Seconds())
}

// RecordCreated counts one created resource.
func (m *Metrics) RecordCreated(kind string) {
	m.RecordsCreated.WithLabelValues(kind).Inc()
}

// RecordImpersonation counts one token exchange.
func (m *Metrics) RecordImpersonation() {
	m.Impersonations.Inc()
}

// WriteTextfile writes the registry in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
