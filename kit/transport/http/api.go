package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/influxdata/sitefeatures/kit/platform/errors"
	"go.uber.org/zap"
)

type oker interface {
	OK() error
}

// APIOptFn is a functional option for an API.
type APIOptFn func(*API)

// WithLog sets the logger used to report encoding and handler errors.
func WithLog(logger *zap.Logger) APIOptFn {
	return func(api *API) {
		api.logger = logger
	}
}

// WithPrettyJSON toggles indented JSON responses.
func WithPrettyJSON(b bool) APIOptFn {
	return func(api *API) {
		api.prettyJSON = b
	}
}

// API provides the shared request decoding and response encoding used by
// every HTTP handler.
type API struct {
	logger     *zap.Logger
	prettyJSON bool
	errHandler ErrorHandler
}

// NewAPI constructs an API.
func NewAPI(opts ...APIOptFn) *API {
	api := API{
		logger:     zap.NewNop(),
		prettyJSON: true,
	}
	for _, o := range opts {
		o(&api)
	}
	return &api
}

// DecodeJSON decodes the body into v and, when v has an OK method, validates
// it. Decoding failures are reported as invalid requests.
func (a *API) DecodeJSON(r io.Reader, v interface{}) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return &errors.Error{
			Code: errors.EInvalid,
			Msg:  "failed to decode request body",
			Err:  err,
		}
	}

	if vv, ok := v.(oker); ok {
		return vv.OK()
	}
	return nil
}

// Respond writes v as JSON with the given status code.
func (a *API) Respond(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	if a.prettyJSON {
		enc.SetIndent("", "\t")
	}
	if err := enc.Encode(v); err != nil {
		a.logger.Error("failed to encode response", zap.Error(err))
	}
}

// Err writes err as a platform error response.
func (a *API) Err(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	if code := errors.ErrorCode(err); code == errors.EInternal {
		a.logger.Error("api error encountered", zap.Error(err), zap.String("path", r.URL.Path))
	} else {
		a.logger.Debug("api error encountered", zap.Error(err), zap.String("code", code))
	}
	a.errHandler.HandleHTTPError(r.Context(), err, w)
}
