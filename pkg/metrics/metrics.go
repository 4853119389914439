package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Validation metrics
	Validations        *prometheus.CounterVec
	Violations         *prometheus.CounterVec
	ValidationDuration prometheus.Histogram

	// Policy metrics
	PolicyUpdates *prometheus.CounterVec

	// Broker metrics
	BrokerOperations *prometheus.CounterVec

	// HTTP metrics
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec
}

// NewMetrics creates all application metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Validations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Total number of password validations by result",
		}, []string{"result"}),
		Violations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_total",
			Help:      "Total number of rule violations by rule",
		}, []string{"rule"}),
		ValidationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_duration_seconds",
			Help:      "Time spent validating a password",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		}),
		PolicyUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_updates_total",
			Help:      "Total number of policy updates by source",
		}, []string{"source"}),
		BrokerOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_operations_total",
			Help:      "Total number of message broker operations",
		}, []string{"operation", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "path", "status"}),
		RequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
	}
}

// New creates metrics on a private registry. Used by tests and tools that do
// not expose /metrics.
func New(namespace string) *Metrics {
	return NewMetrics(prometheus.NewRegistry(), namespace)
}
