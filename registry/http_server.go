package registry

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/influxdata/sitefeatures"
	"github.com/influxdata/sitefeatures/kit/platform/errors"
	kithttp "github.com/influxdata/sitefeatures/kit/transport/http"
	"go.uber.org/zap"
)

const (
	prefixFeatures = "/api/v2/features"
)

var errMissingEnabled = &errors.Error{
	Code: errors.EInvalid,
	Msg:  `request body must set "enabled"`,
}

// FeatureHandler serves the administrative API over a FeatureService.
type FeatureHandler struct {
	chi.Router

	log *zap.Logger
	api *kithttp.API

	featureService sitefeatures.FeatureService
}

// NewFeatureHandler returns the admin API for svc. Calls are logged at debug
// level through log.
func NewFeatureHandler(log *zap.Logger, svc sitefeatures.FeatureService) *FeatureHandler {
	h := &FeatureHandler{
		log:            log,
		api:            kithttp.NewAPI(kithttp.WithLog(log)),
		featureService: newLoggingService(log, svc),
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		middleware.RequestID,
		middleware.RealIP,
	)

	r.Route("/", func(r chi.Router) {
		r.Get("/", h.handleGetFeatures)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetFeature)
			r.Patch("/", h.handlePatchFeature)
		})
	})

	h.Router = r
	return h
}

// Prefix is where the handler expects to be mounted.
func (h *FeatureHandler) Prefix() string {
	return prefixFeatures
}

type featuresResponse struct {
	Features []*sitefeatures.FeatureInfo `json:"features"`
}

func (h *FeatureHandler) handleGetFeatures(w http.ResponseWriter, r *http.Request) {
	fs, err := h.featureService.FindFeatures(r.Context())
	if err != nil {
		h.api.Err(w, r, err)
		return
	}
	h.api.Respond(w, r, http.StatusOK, featuresResponse{Features: fs})
}

func (h *FeatureHandler) handleGetFeature(w http.ResponseWriter, r *http.Request) {
	f, err := h.featureService.FindFeature(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.api.Err(w, r, err)
		return
	}
	h.api.Respond(w, r, http.StatusOK, f)
}

type featureUpdate struct {
	Enabled *bool `json:"enabled"`
}

// OK validates the update.
func (u featureUpdate) OK() error {
	if u.Enabled == nil {
		return errMissingEnabled
	}
	return nil
}

func (h *FeatureHandler) handlePatchFeature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var upd featureUpdate
	if err := h.api.DecodeJSON(r.Body, &upd); err != nil {
		h.api.Err(w, r, err)
		return
	}

	if err := h.featureService.SetEnabled(ctx, id, *upd.Enabled); err != nil {
		h.api.Err(w, r, err)
		return
	}

	f, err := h.featureService.FindFeature(ctx, id)
	if err != nil {
		h.api.Err(w, r, err)
		return
	}
	h.api.Respond(w, r, http.StatusOK, f)
}
