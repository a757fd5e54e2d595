package registry_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/influxdata/sitefeatures/mock"
	"github.com/influxdata/sitefeatures/registry"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func featureAt(id, subpath string) *mock.Feature {
	f := mock.NewFeature(id)
	f.SubpathFn = func() string { return subpath }
	f.RouterFn = func() http.Handler {
		r := chi.NewRouter()
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(id + " root"))
		})
		r.Get("/hello", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(id + " hello"))
		})
		return r
	}
	return f
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	b, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(b)
}

func TestRouter_ComposesEveryFeature(t *testing.T) {
	store := mock.NewFlagStore()
	store.Flags["a"] = true
	r := newRegistry(t, store, featureAt("a", "/a"), featureAt("b", "/b"))

	router := r.Router()

	code, body := get(t, router, "/a/hello")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "a hello", body)

	// b is disabled and still reachable
	code, body = get(t, router, "/b/hello")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "b hello", body)

	code, body = get(t, router, "/b")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "b root", body)

	code, _ = get(t, router, "/c/hello")
	require.Equal(t, http.StatusNotFound, code)
}

func TestRouter_NormalizesSubpaths(t *testing.T) {
	r := newRegistry(t, mock.NewFlagStore(),
		featureAt("a", "a/"),
		featureAt("b", ""),
	)
	router := r.Router()

	_, body := get(t, router, "/a/hello")
	require.Equal(t, "a hello", body)

	_, body = get(t, router, "/hello")
	require.Equal(t, "b hello", body)
}

func TestRouter_DuplicateSubpath(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := registry.NewBuilder(zap.New(core)).
		AddFeature(featureAt("second", "/shared")).
		AddFeature(featureAt("first", "/shared/")).
		Build(mock.NewFlagStore())

	router := r.Router()
	_, body := get(t, router, "/shared/hello")
	require.Equal(t, "first hello", body)

	warnings := logs.FilterMessage("Feature subpath already mounted; not mounting").All()
	require.Len(t, warnings, 1)
	require.Equal(t, "second", warnings[0].ContextMap()["id"])
	require.Equal(t, "first", warnings[0].ContextMap()["mounted_by"])
}

func TestRouter_NilRouterSkipped(t *testing.T) {
	f := mock.NewFeature("empty")
	f.RouterFn = func() http.Handler { return nil }
	r := newRegistry(t, mock.NewFlagStore(), f, featureAt("a", "/a"))

	router := r.Router()
	_, body := get(t, router, "/a/hello")
	require.Equal(t, "a hello", body)
}

func TestRouter_ReflectsLiveFeature(t *testing.T) {
	f := &loggingFeature{}
	r := newRegistry(t, mock.NewFlagStore(), f)

	code, body := get(t, r.Router(), "/log")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "log", body)
}
