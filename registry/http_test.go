package registry_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/influxdata/sitefeatures"
	ierrors "github.com/influxdata/sitefeatures/kit/platform/errors"
	kithttp "github.com/influxdata/sitefeatures/kit/transport/http"
	"github.com/influxdata/sitefeatures/mock"
	"github.com/influxdata/sitefeatures/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T, svc sitefeatures.FeatureService) *httptest.Server {
	t.Helper()

	h := registry.NewFeatureHandler(zaptest.NewLogger(t), svc)
	r := chi.NewRouter()
	r.Mount(h.Prefix(), h)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestFeatureHandler(t *testing.T) {
	type wants struct {
		statusCode int
		errCode    string
		body       string
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		wants  wants
	}{
		{
			name:   "list features",
			method: http.MethodGet,
			path:   "/api/v2/features",
			wants: wants{
				statusCode: http.StatusOK,
				body: `{"features":[
					{"id":"bad","name":"Unnamed Feature","description":"No Description","subpath":"/","enabled":false},
					{"id":"log","name":"Request Log","description":"No Description","subpath":"/log","enabled":false}
				]}`,
			},
		},
		{
			name:   "get feature",
			method: http.MethodGet,
			path:   "/api/v2/features/log",
			wants: wants{
				statusCode: http.StatusOK,
				body:       `{"id":"log","name":"Request Log","description":"No Description","subpath":"/log","enabled":false}`,
			},
		},
		{
			name:   "get missing feature",
			method: http.MethodGet,
			path:   "/api/v2/features/nope",
			wants: wants{
				statusCode: http.StatusNotFound,
				errCode:    ierrors.ENotFound,
			},
		},
		{
			name:   "enable feature",
			method: http.MethodPatch,
			path:   "/api/v2/features/log",
			body:   `{"enabled":true}`,
			wants: wants{
				statusCode: http.StatusOK,
				body:       `{"id":"log","name":"Request Log","description":"No Description","subpath":"/log","enabled":true}`,
			},
		},
		{
			name:   "enable missing feature",
			method: http.MethodPatch,
			path:   "/api/v2/features/nope",
			body:   `{"enabled":true}`,
			wants: wants{
				statusCode: http.StatusNotFound,
				errCode:    ierrors.ENotFound,
			},
		},
		{
			name:   "hook rejects",
			method: http.MethodPatch,
			path:   "/api/v2/features/bad",
			body:   `{"enabled":true}`,
			wants: wants{
				statusCode: http.StatusConflict,
				errCode:    ierrors.EConflict,
			},
		},
		{
			name:   "malformed body",
			method: http.MethodPatch,
			path:   "/api/v2/features/log",
			body:   `{"enabled":`,
			wants: wants{
				statusCode: http.StatusBadRequest,
				errCode:    ierrors.EInvalid,
			},
		},
		{
			name:   "missing enabled",
			method: http.MethodPatch,
			path:   "/api/v2/features/log",
			body:   `{}`,
			wants: wants{
				statusCode: http.StatusBadRequest,
				errCode:    ierrors.EInvalid,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := mock.NewFeature("bad")
			bad.SetupFn = func(context.Context) error { return sitefeatures.NewFailure("nope") }
			r := newRegistry(t, mock.NewFlagStore(), &loggingFeature{}, bad)
			srv := newTestServer(t, r)

			req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)
			resp, err := srv.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, tt.wants.statusCode, resp.StatusCode)
			if tt.wants.errCode != "" {
				assert.Equal(t, tt.wants.errCode, resp.Header.Get(kithttp.PlatformErrorCodeHeader))
				var e struct {
					Code string `json:"code"`
				}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
				assert.Equal(t, tt.wants.errCode, e.Code)
				return
			}

			var got interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			var want interface{}
			require.NoError(t, json.Unmarshal([]byte(tt.wants.body), &want))
			assert.Equal(t, want, got)
		})
	}
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	bad := mock.NewFeature("bad")
	bad.SetupFn = func(context.Context) error { return sitefeatures.NewFailure("no upstream") }
	f := &loggingFeature{}
	r := newRegistry(t, mock.NewFlagStore(), f, bad)
	srv := newTestServer(t, r)

	c := registry.NewClient(srv.URL + "/")

	fs, err := c.FindFeatures(ctx)
	require.NoError(t, err)
	require.Len(t, fs, 2)
	require.Equal(t, "bad", fs[0].ID)
	require.Equal(t, "log", fs[1].ID)

	require.NoError(t, c.SetEnabled(ctx, "log", true))
	require.Equal(t, 1, f.counter)

	info, err := c.FindFeature(ctx, "log")
	require.NoError(t, err)
	require.True(t, info.Enabled)
	require.Equal(t, "/log", info.Subpath)

	_, err = c.FindFeature(ctx, "nope")
	require.True(t, sitefeatures.IsNotFound(err))

	err = c.SetEnabled(ctx, "bad", true)
	require.True(t, sitefeatures.IsFailure(err))
	require.Contains(t, err.Error(), "no upstream")

	err = c.SetEnabled(ctx, "nope", true)
	require.True(t, sitefeatures.IsNotFound(err))
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := registry.NewClient(srv.URL).FindFeatures(context.Background())
	require.Error(t, err)
}
