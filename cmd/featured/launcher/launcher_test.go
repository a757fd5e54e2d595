package launcher_test

import (
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/influxdata/sitefeatures/cmd/featured/launcher"
	"github.com/influxdata/sitefeatures/features/metrics"
	"github.com/influxdata/sitefeatures/features/status"
	"github.com/influxdata/sitefeatures/kit/prom/promtest"
	"github.com/influxdata/sitefeatures/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Default context.
var ctx = context.Background()

// TestLauncher wraps a Launcher listening on an ephemeral port.
type TestLauncher struct {
	*launcher.Launcher
	Path string
}

func NewTestLauncher(t *testing.T) *TestLauncher {
	t.Helper()

	l := &TestLauncher{
		Launcher: launcher.NewLauncher(),
		Path:     t.TempDir(),
	}
	l.Stdout = io.Discard
	l.Stderr = io.Discard
	return l
}

func (tl *TestLauncher) RunOrFail(t *testing.T, ctx context.Context, args ...string) {
	t.Helper()

	args = append([]string{
		"--http-bind-address", "127.0.0.1:0",
		"--bolt-path", filepath.Join(tl.Path, "featured.bolt"),
		"--sqlite-path", filepath.Join(tl.Path, "featured.sqlite"),
		"--log-level", "debug",
	}, args...)
	require.NoError(t, tl.Run(ctx, args...))
}

func (tl *TestLauncher) ShutdownOrFail(t *testing.T, ctx context.Context) {
	t.Helper()
	require.NoError(t, tl.Shutdown(ctx))
}

func (tl *TestLauncher) Client() *registry.Client {
	return registry.NewClient(tl.URL())
}

func (tl *TestLauncher) Get(t *testing.T, path string) (int, []byte) {
	t.Helper()

	resp, err := nethttp.Get(tl.URL() + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, b
}

func TestLauncher_Stores(t *testing.T) {
	for _, store := range []string{launcher.MemoryStore, launcher.BoltStore, launcher.SqliteStore} {
		t.Run(store, func(t *testing.T) {
			l := NewTestLauncher(t)
			l.RunOrFail(t, ctx, "--store", store)
			defer l.ShutdownOrFail(t, ctx)

			code, _ := l.Get(t, "/status")
			assert.Equal(t, nethttp.StatusServiceUnavailable, code)

			client := l.Client()
			require.NoError(t, client.SetEnabled(ctx, status.ID, true))

			code, body := l.Get(t, "/status")
			require.Equal(t, nethttp.StatusOK, code)

			var resp status.Response
			require.NoError(t, json.Unmarshal(body, &resp))
			assert.Equal(t, "pass", resp.Status)

			infos, err := client.FindFeatures(ctx)
			require.NoError(t, err)
			require.Len(t, infos, 2)
			assert.Equal(t, metrics.ID, infos[0].ID)
			assert.False(t, infos[0].Enabled)
			assert.Equal(t, status.ID, infos[1].ID)
			assert.True(t, infos[1].Enabled)

			require.NoError(t, client.SetEnabled(ctx, status.ID, false))
			code, _ = l.Get(t, "/status")
			assert.Equal(t, nethttp.StatusServiceUnavailable, code)
		})
	}
}

func TestLauncher_Metrics(t *testing.T) {
	l := NewTestLauncher(t)
	l.RunOrFail(t, ctx, "--store", launcher.MemoryStore)
	defer l.ShutdownOrFail(t, ctx)

	require.NoError(t, l.Client().SetEnabled(ctx, metrics.ID, true))

	mfs := promtest.MustScrape(t, l.URL()+"/metrics")
	m := promtest.MustFindMetric(t, mfs, "sitefeatures_registry_features", nil)
	assert.Equal(t, 2.0, promtest.Value(m))
	m = promtest.MustFindMetric(t, mfs, "sitefeatures_registry_transitions_total", map[string]string{
		"feature":    metrics.ID,
		"transition": "setup",
		"result":     "success",
	})
	assert.Equal(t, 1.0, promtest.Value(m))
	promtest.MustFindMetric(t, mfs, "go_goroutines", nil)
}

func TestLauncher_UnknownFeature(t *testing.T) {
	l := NewTestLauncher(t)
	l.RunOrFail(t, ctx, "--store", launcher.MemoryStore)
	defer l.ShutdownOrFail(t, ctx)

	code, _ := l.Get(t, "/api/v2/features/nope")
	assert.Equal(t, nethttp.StatusNotFound, code)
}

func TestLauncher_RestoreEnabled(t *testing.T) {
	dir := t.TempDir()
	boltPath := filepath.Join(dir, "featured.bolt")

	l := NewTestLauncher(t)
	l.RunOrFail(t, ctx, "--store", launcher.BoltStore, "--bolt-path", boltPath)
	require.NoError(t, l.Client().SetEnabled(ctx, status.ID, true))
	l.ShutdownOrFail(t, ctx)

	// Without restore the flag is remembered but the feature stays down.
	l = NewTestLauncher(t)
	l.RunOrFail(t, ctx, "--store", launcher.BoltStore, "--bolt-path", boltPath)
	code, _ := l.Get(t, "/status")
	assert.Equal(t, nethttp.StatusServiceUnavailable, code)
	l.ShutdownOrFail(t, ctx)

	l = NewTestLauncher(t)
	l.RunOrFail(t, ctx, "--store", launcher.BoltStore, "--bolt-path", boltPath, "--restore-enabled")
	defer l.ShutdownOrFail(t, ctx)
	code, _ = l.Get(t, "/status")
	assert.Equal(t, nethttp.StatusOK, code)
}

func TestLauncher_FlagDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flags.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
- name: Status
  description: Reports server uptime
  key: status
  default: true
  lifetime: permanent
`), 0o600))

	l := NewTestLauncher(t)
	l.RunOrFail(t, ctx, "--store", launcher.MemoryStore, "--flags-path", path, "--restore-enabled")
	defer l.ShutdownOrFail(t, ctx)

	f, err := l.Client().FindFeature(ctx, status.ID)
	require.NoError(t, err)
	assert.True(t, f.Enabled)

	code, _ := l.Get(t, "/status")
	assert.Equal(t, nethttp.StatusOK, code)
}

func TestLauncher_Flush(t *testing.T) {
	l := NewTestLauncher(t)
	l.RunOrFail(t, ctx, "--store", launcher.SqliteStore, "--e2e-testing")
	defer l.ShutdownOrFail(t, ctx)

	client := l.Client()
	require.NoError(t, client.SetEnabled(ctx, status.ID, true))

	resp, err := nethttp.Post(l.URL()+"/debug/flush", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)

	f, err := client.FindFeature(ctx, status.ID)
	require.NoError(t, err)
	assert.False(t, f.Enabled)
}

func TestLauncher_BadStore(t *testing.T) {
	l := NewTestLauncher(t)
	err := l.Run(ctx, "--store", "etcd", "--http-bind-address", "127.0.0.1:0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store type")
}

func TestLauncher_ListenFailureReleasesStore(t *testing.T) {
	boltPath := filepath.Join(t.TempDir(), "featured.bolt")

	l := NewTestLauncher(t)
	err := l.Run(ctx,
		"--store", launcher.BoltStore,
		"--bolt-path", boltPath,
		"--http-bind-address", "127.0.0.1:99999")
	require.Error(t, err)
	// nothing is left for Shutdown to close
	require.NoError(t, l.Shutdown(ctx))

	// the bolt file lock was released, so a second open succeeds
	l = NewTestLauncher(t)
	l.RunOrFail(t, ctx, "--store", launcher.BoltStore, "--bolt-path", boltPath)
	defer l.ShutdownOrFail(t, ctx)

	_, err = l.Client().FindFeature(ctx, status.ID)
	require.NoError(t, err)
}
