// Package status reports how long the server has been up since the
// feature was enabled.
package status

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi"
	"github.com/influxdata/sitefeatures"
	"github.com/influxdata/sitefeatures/kit/platform/errors"
	kithttp "github.com/influxdata/sitefeatures/kit/transport/http"
	"go.uber.org/zap"
)

// ID is the identifier of the status feature.
const ID = "status"

var errDisabled = &errors.Error{
	Code: errors.EUnavailable,
	Msg:  "status feature is disabled",
}

var _ sitefeatures.Feature = (*Feature)(nil)

// Feature serves GET /status while it is set up.
type Feature struct {
	sitefeatures.Base

	log *zap.Logger
	api *kithttp.API

	// Clock is the source of the start time and uptime. It defaults to the
	// wall clock; tests swap in a mock.
	Clock clock.Clock

	mu      sync.RWMutex
	started time.Time
}

// New returns a status feature that is not set up.
func New(log *zap.Logger) *Feature {
	if log == nil {
		log = zap.NewNop()
	}
	return &Feature{
		log:   log,
		api:   kithttp.NewAPI(kithttp.WithLog(log)),
		Clock: clock.New(),
	}
}

func (f *Feature) ID() string          { return ID }
func (f *Feature) Subpath() string     { return "/status" }
func (f *Feature) Name() string        { return "Status" }
func (f *Feature) Description() string { return "Reports server uptime" }

// Response is the body of GET /status.
type Response struct {
	Status  string    `json:"status"`
	Started time.Time `json:"started"`
	Uptime  string    `json:"uptime"`
	Since   string    `json:"since"`
}

// Router answers 503 until Setup has run.
func (f *Feature) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", f.handleGetStatus)
	return r
}

func (f *Feature) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	f.mu.RLock()
	started := f.started
	f.mu.RUnlock()

	if started.IsZero() {
		f.api.Err(w, r, errDisabled)
		return
	}

	now := f.Clock.Now()
	f.api.Respond(w, r, http.StatusOK, Response{
		Status:  "pass",
		Started: started.UTC(),
		Uptime:  now.Sub(started).Round(time.Second).String(),
		Since:   humanize.RelTime(started, now, "ago", "from now"),
	})
}

// Setup records the activation time. Setting up twice keeps the first time.
func (f *Feature) Setup(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.started.IsZero() {
		f.started = f.Clock.Now()
		f.log.Info("Status reporting started", zap.Time("started", f.started))
	}
	return nil
}

// Shutdown forgets the activation time.
func (f *Feature) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.started = time.Time{}
	f.log.Info("Status reporting stopped")
	return nil
}
