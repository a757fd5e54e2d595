// Package prom provides a wrapper around a prometheus metrics registry
// so that all services are unified in how they expose prometheus metrics.
package prom

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// PrometheusCollector is the interface for a type to expose prometheus metrics.
// This interface is provided as a convention, so that you can optionally check
// if a type implements it and then pass its collectors to (*Registry).RegisterAll.
type PrometheusCollector interface {
	// PrometheusCollectors returns a slice of prometheus collectors
	// containing metrics for the underlying instance.
	PrometheusCollectors() []prometheus.Collector
}

// Registry embeds a prometheus registry and adds a few extra features.
type Registry struct {
	*prometheus.Registry

	log *zap.Logger
}

// NewRegistry returns a new registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		Registry: prometheus.NewRegistry(),
		log:      log,
	}
}

// RegisterAll registers the collectors of every source. Collectors that are
// already registered are skipped; any other registration error is returned
// after the remaining collectors have been tried.
func (r *Registry) RegisterAll(sources ...PrometheusCollector) error {
	var errs error
	for _, s := range sources {
		for _, c := range s.PrometheusCollectors() {
			err := r.Register(c)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// UnregisterAll removes the collectors of every source.
func (r *Registry) UnregisterAll(sources ...PrometheusCollector) {
	for _, s := range sources {
		for _, c := range s.PrometheusCollectors() {
			r.Unregister(c)
		}
	}
}

// HTTPHandler returns an http.Handler for the registry,
// so that the /metrics HTTP handler is uniformly configured across all apps in the platform.
func (r *Registry) HTTPHandler() http.Handler {
	opts := promhttp.HandlerOpts{
		ErrorLog: promLogger{r: r},
	}
	return promhttp.HandlerFor(r.Registry, opts)
}

// promLogger satisfies the promhttp.Logger interface with the registry's logger.
type promLogger struct {
	r *Registry
}

var _ promhttp.Logger = (*promLogger)(nil)

// Println implements promhttp.Logger.
func (pl promLogger) Println(v ...interface{}) {
	pl.r.log.Sugar().Info(v...)
}

// Collectors adapts a plain slice of collectors to PrometheusCollector.
type Collectors []prometheus.Collector

// PrometheusCollectors returns the slice itself.
func (c Collectors) PrometheusCollectors() []prometheus.Collector {
	return c
}
