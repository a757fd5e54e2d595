// Package metrics exposes prometheus metrics of the server while enabled.
package metrics

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi"
	"github.com/influxdata/sitefeatures"
	"github.com/influxdata/sitefeatures/kit/platform/errors"
	"github.com/influxdata/sitefeatures/kit/prom"
	kithttp "github.com/influxdata/sitefeatures/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// ID is the identifier of the metrics feature.
const ID = "metrics"

var errDisabled = &errors.Error{
	Code: errors.EUnavailable,
	Msg:  "metrics feature is disabled",
}

var _ sitefeatures.Feature = (*Feature)(nil)

// Feature serves the collectors of its sources in the prometheus text format.
// Each Setup builds a fresh registry so that the feature can be toggled any
// number of times.
type Feature struct {
	sitefeatures.Base

	log     *zap.Logger
	api     *kithttp.API
	sources []prom.PrometheusCollector

	mu       sync.RWMutex
	registry *prom.Registry
	handler  http.Handler
}

// New returns a metrics feature exposing sources along with the Go runtime
// and process collectors.
func New(log *zap.Logger, sources ...prom.PrometheusCollector) *Feature {
	if log == nil {
		log = zap.NewNop()
	}
	return &Feature{
		log:     log,
		api:     kithttp.NewAPI(kithttp.WithLog(log)),
		sources: sources,
	}
}

func (f *Feature) ID() string          { return ID }
func (f *Feature) Subpath() string     { return "/metrics" }
func (f *Feature) Name() string        { return "Metrics" }
func (f *Feature) Description() string { return "Prometheus metrics of the server" }

// AddSources exposes more collectors. Sources added while the feature is set
// up are registered on the next Setup.
func (f *Feature) AddSources(sources ...prom.PrometheusCollector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, sources...)
}

// Router answers 503 until Setup has run.
func (f *Feature) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.RLock()
		h := f.handler
		f.mu.RUnlock()

		if h == nil {
			f.api.Err(w, r, errDisabled)
			return
		}
		h.ServeHTTP(w, r)
	})
	return r
}

// Setup registers every source with a new registry.
func (f *Feature) Setup(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.registry != nil {
		return nil
	}

	reg := prom.NewRegistry(f.log)
	runtime := prom.Collectors{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	if err := reg.RegisterAll(append([]prom.PrometheusCollector{runtime}, f.sources...)...); err != nil {
		return &errors.Error{
			Code: errors.EConflict,
			Msg:  "unable to register metrics",
			Err:  err,
		}
	}

	f.registry = reg
	f.handler = reg.HTTPHandler()
	f.log.Info("Metrics endpoint enabled", zap.Int("sources", len(f.sources)))
	return nil
}

// Shutdown drops the registry along with every registration.
func (f *Feature) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.registry != nil {
		f.registry.UnregisterAll(f.sources...)
	}
	f.registry = nil
	f.handler = nil
	f.log.Info("Metrics endpoint disabled")
	return nil
}
