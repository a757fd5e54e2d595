package registry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	transitionSetup    = "setup"
	transitionShutdown = "shutdown"

	resultSuccess    = "success"
	resultFailure    = "failure"
	resultNotFound   = "not_found"
	resultStoreError = "store_error"

	// unknownFeature is the feature label of attempts on unregistered ids.
	unknownFeature = ""
)

type metrics struct {
	transitions  *prometheus.CounterVec
	hookDuration *prometheus.HistogramVec
	features     prometheus.GaugeFunc
}

func newMetrics(r *Registry) *metrics {
	const (
		namespace = "sitefeatures"
		subsystem = "registry"
	)

	return &metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transitions_total",
			Help:      "Count of feature enable/disable transitions by outcome",
		}, []string{"feature", "transition", "result"}),

		hookDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "hook_duration_seconds",
			Help:      "Histogram of time spent in feature setup and shutdown hooks",
			Buckets:   prometheus.ExponentialBuckets(1e-3, 5, 7),
		}, []string{"feature", "transition"}),

		features: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "features",
			Help:      "Number of features registered",
		}, func() float64 {
			return float64(len(r.IDs()))
		}),
	}
}

// PrometheusCollectors satisfies the prom.PrometheusCollector interface.
func (r *Registry) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		r.metrics.transitions,
		r.metrics.hookDuration,
		r.metrics.features,
	}
}
