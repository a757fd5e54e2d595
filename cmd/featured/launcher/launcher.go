package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"os"
	"os/user"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/influxdata/sitefeatures"
	"github.com/influxdata/sitefeatures/bolt"
	"github.com/influxdata/sitefeatures/features/metrics"
	"github.com/influxdata/sitefeatures/features/status"
	"github.com/influxdata/sitefeatures/inmem"
	"github.com/influxdata/sitefeatures/kit/cli"
	"github.com/influxdata/sitefeatures/kit/feature"
	"github.com/influxdata/sitefeatures/kit/signals"
	kithttp "github.com/influxdata/sitefeatures/kit/transport/http"
	"github.com/influxdata/sitefeatures/kv"
	sitelogger "github.com/influxdata/sitefeatures/logger"
	"github.com/influxdata/sitefeatures/registry"
	"github.com/influxdata/sitefeatures/sqlite"
	"github.com/influxdata/sitefeatures/sqlite/migrations"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// BoltStore stores feature flags in boltdb.
	BoltStore = "bolt"
	// MemoryStore stores feature flags in memory (useful for testing).
	MemoryStore = "memory"
	// SqliteStore stores feature flags in sqlite.
	SqliteStore = "sqlite"
)

// NewCommand returns the run command. It blocks until SIGINT or SIGTERM.
func NewCommand(v *viper.Viper) (*cobra.Command, error) {
	l := NewLauncher()
	cmd, err := l.command(v, func() error {
		// exit with SIGINT and SIGTERM
		ctx := signals.WithStandardSignals(context.Background())

		if err := l.run(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		// Attempt clean shutdown.
		ctx, cancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
		defer cancel()
		return l.Shutdown(ctx)
	})
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

func (m *Launcher) command(v *viper.Viper, run func() error) (*cobra.Command, error) {
	dir, err := featuredDir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine featured directory: %w", err)
	}

	prog := &cli.Program{
		Name: "featured",
		Run:  run,
		Opts: []cli.Opt{
			{
				DestP:   &m.logLevel,
				Flag:    "log-level",
				Default: zapcore.InfoLevel,
				Desc:    "supported log levels are debug, info, warn and error",
			},
			{
				DestP:   &m.logFormat,
				Flag:    "log-format",
				Default: "auto",
				Desc:    "log output format: auto, logfmt, json or console",
			},
			{
				DestP:   &m.httpBindAddress,
				Flag:    "http-bind-address",
				Default: ":8080",
				Desc:    "bind address for the feature routes and the admin API",
			},
			{
				DestP:   &m.storeType,
				Flag:    "store",
				Default: BoltStore,
				Desc:    fmt.Sprintf("backing store for feature flags (%s, %s or %s)", BoltStore, SqliteStore, MemoryStore),
			},
			{
				DestP:   &m.boltPath,
				Flag:    "bolt-path",
				Default: filepath.Join(dir, "featured.bolt"),
				Desc:    "path to boltdb database",
			},
			{
				DestP:   &m.sqlitePath,
				Flag:    "sqlite-path",
				Default: filepath.Join(dir, sqlite.DefaultFilename),
				Desc:    "path to sqlite database",
			},
			{
				DestP: &m.flagsPath,
				Flag:  "flags-path",
				Desc:  "path to a YAML file declaring flag defaults",
			},
			{
				DestP:   &m.restoreEnabled,
				Flag:    "restore-enabled",
				Default: false,
				Desc:    "set up every feature whose stored flag is enabled at startup",
			},
			{
				DestP:   &m.shutdownTimeout,
				Flag:    "shutdown-timeout",
				Default: 10 * time.Second,
				Desc:    "how long to wait for requests and feature shutdown on exit",
			},
			{
				DestP:   &m.testing,
				Flag:    "e2e-testing",
				Default: false,
				Desc:    "add /debug/flush endpoint to clear stores; used for end-to-end tests",
				Hidden:  true,
			},
		},
	}

	cmd, err := cli.NewCommand(v, prog)
	if err != nil {
		return nil, err
	}
	cmd.Use = "run"
	cmd.Short = "Start the feature server"
	return cmd, nil
}

func featuredDir() (string, error) {
	var dir string
	// By default, store flags in the current user's home directory
	u, err := user.Current()
	if err == nil {
		dir = u.HomeDir
	} else if home := os.Getenv("HOME"); home != "" {
		dir = home
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = wd
	}
	return filepath.Join(dir, ".sitefeatures"), nil
}

// Flusher clears all data from a store. It is only wired in for
// end-to-end tests.
type Flusher interface {
	Flush(ctx context.Context)
}

// Launcher represents the main program execution.
type Launcher struct {
	wg      sync.WaitGroup
	cancel  func()
	running bool

	storeType       string
	boltPath        string
	sqlitePath      string
	flagsPath       string
	restoreEnabled  bool
	testing         bool
	shutdownTimeout time.Duration

	logLevel  zapcore.Level
	logFormat string

	httpBindAddress string
	httpPort        int
	httpServer      *nethttp.Server

	flagStore sitefeatures.FlagStore
	flusher   Flusher
	closers   []io.Closer
	registry  *registry.Registry

	log *zap.Logger

	Stdout io.Writer
	Stderr io.Writer
}

// NewLauncher returns a new instance of Launcher connected to standard out/err.
func NewLauncher() *Launcher {
	return &Launcher{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Running returns true if the main Launcher has started running.
func (m *Launcher) Running() bool {
	return m.running
}

// Logger returns the launchers logger.
func (m *Launcher) Logger() *zap.Logger {
	return m.log
}

// Registry returns the feature registry.
func (m *Launcher) Registry() *registry.Registry {
	return m.registry
}

// URL returns the URL to connect to the HTTP server.
func (m *Launcher) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", m.httpPort)
}

// Run executes the program with the given CLI arguments. It returns once
// the HTTP server is listening; call Shutdown to stop it.
func (m *Launcher) Run(ctx context.Context, args ...string) error {
	cmd, err := m.command(viper.New(), func() error {
		return m.run(ctx)
	})
	if err != nil {
		return err
	}

	cmd.SetArgs(args)
	cmd.SetOut(m.Stdout)
	cmd.SetErr(m.Stderr)
	return cmd.Execute()
}

func (m *Launcher) run(ctx context.Context) (err error) {
	m.running = true
	ctx, m.cancel = context.WithCancel(ctx)

	// Create top level logger
	logconf := &sitelogger.Config{
		Format: m.logFormat,
		Level:  m.logLevel,
	}
	m.log, err = logconf.New(m.Stdout)
	if err != nil {
		return err
	}
	ctx = sitelogger.NewContextWithLogger(ctx, m.log)

	defer func() {
		if err != nil {
			m.abort(ctx)
		}
	}()

	m.log.Info("Welcome to featured",
		zap.String("store", m.storeType),
		zap.String("http_bind_address", m.httpBindAddress))

	defaults := map[string]bool{}
	if m.flagsPath != "" {
		flags, err := feature.ReadFile(m.flagsPath)
		if err != nil {
			m.log.Error("Failed to read flag defaults", zap.String("path", m.flagsPath), zap.Error(err))
			return err
		}
		defaults = feature.Defaults(flags)
		for _, f := range flags {
			m.log.Debug("Flag default",
				zap.String("key", f.Key),
				zap.Bool("default", f.Default),
				zap.Stringer("lifetime", f.Lifetime),
				zap.String("owner", f.Owner))
		}
	}

	if err := m.openStore(ctx, defaults); err != nil {
		m.log.Error("Failed to open flag store", zap.String("store", m.storeType), zap.Error(err))
		return err
	}

	httpMetrics := kithttp.NewHTTPMetrics("sitefeatures")
	metricsFeature := metrics.New(m.log.With(zap.String("feature", metrics.ID)), httpMetrics)

	m.registry = registry.NewBuilder(m.log.With(zap.String("service", "registry"))).
		AddFeature(status.New(m.log.With(zap.String("feature", status.ID)))).
		AddFeature(metricsFeature).
		Build(m.flagStore)
	metricsFeature.AddSources(m.registry)

	if m.restoreEnabled {
		if err := m.registry.Restore(ctx); err != nil {
			m.log.Warn("Some features could not be restored", zap.Error(err))
		}
	}

	m.httpServer = &nethttp.Server{
		Handler:           m.handler(ctx, httpMetrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", m.httpBindAddress)
	if err != nil {
		m.log.Error("Failed to set up TCP listener", zap.String("addr", m.httpBindAddress), zap.Error(err))
		return err
	}
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		m.httpPort = addr.Port
	}

	m.wg.Add(1)
	go func(log *zap.Logger) {
		defer m.wg.Done()
		log.Info("Listening", zap.String("transport", "http"), zap.String("addr", m.httpBindAddress), zap.Int("port", m.httpPort))

		if err := m.httpServer.Serve(ln); !errors.Is(err, nethttp.ErrServerClosed) {
			log.Error("Failed http service", zap.Error(err))
		}
		log.Info("Stopping")
	}(m.log.With(zap.String("service", "http")))

	return nil
}

// abort releases whatever a failed run acquired, so the stores can be
// reopened and a later Shutdown has nothing left to close.
func (m *Launcher) abort(ctx context.Context) {
	if m.registry != nil {
		if err := m.registry.Close(ctx); err != nil {
			m.log.Warn("Some features failed to shut down", zap.Error(err))
		}
		m.registry = nil
	}
	m.httpServer = nil
	if err := m.closeStores(); err != nil {
		m.log.Error("Failed closing store", zap.Error(err))
	}
	m.cancel()
}

func (m *Launcher) closeStores() error {
	var errs error
	for _, c := range m.closers {
		errs = multierr.Append(errs, c.Close())
	}
	m.closers = nil
	return errs
}

func (m *Launcher) openStore(ctx context.Context, defaults map[string]bool) error {
	switch m.storeType {
	case BoltStore:
		store := bolt.NewKVStore(m.log.With(zap.String("service", "bolt")), m.boltPath)
		if err := store.Open(ctx); err != nil {
			return err
		}
		m.closers = append(m.closers, store)
		m.flusher = store
		m.flagStore = kv.NewFlagStore(store,
			kv.WithDefaults(defaults),
			kv.WithFlagStoreLogger(m.log.With(zap.String("service", "flags"))))
	case MemoryStore:
		store := inmem.NewKVStore()
		m.flusher = store
		m.flagStore = kv.NewFlagStore(store,
			kv.WithDefaults(defaults),
			kv.WithFlagStoreLogger(m.log.With(zap.String("service", "flags"))))
	case SqliteStore:
		store, err := sqlite.NewSqlStore(m.sqlitePath, m.log.With(zap.String("service", "sqlite")))
		if err != nil {
			return err
		}
		m.closers = append(m.closers, store)
		if err := sqlite.NewMigrator(store, m.log.With(zap.String("service", "migrations"))).Up(ctx, migrations.AllUp); err != nil {
			return err
		}
		m.flusher = store
		m.flagStore = sqlite.NewFlagStore(m.log.With(zap.String("service", "flags")), store, sqlite.WithDefaults(defaults))
	default:
		return fmt.Errorf("unknown store type %s; expected %s, %s or %s", m.storeType, BoltStore, SqliteStore, MemoryStore)
	}
	return nil
}

func (m *Launcher) handler(ctx context.Context, httpMetrics *kithttp.HTTPMetrics) nethttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		middleware.RequestID,
		middleware.RealIP,
		kithttp.SkipOptions,
		kithttp.SetCORS,
		kithttp.Trace("featured"),
		kithttp.Metrics("featured", httpMetrics),
		kithttp.Logging(m.log.With(zap.String("service", "http"))),
	)

	admin := registry.NewFeatureHandler(m.log.With(zap.String("handler", "features")), m.registry)
	r.Mount(admin.Prefix(), admin)

	if m.testing {
		r.Post("/debug/flush", func(w nethttp.ResponseWriter, r *nethttp.Request) {
			m.flusher.Flush(ctx)
			w.WriteHeader(nethttp.StatusOK)
		})
	}

	r.Mount("/", m.registry.Router())
	return r
}

// Shutdown stops the HTTP server, shuts down every enabled feature and
// closes the flag store.
func (m *Launcher) Shutdown(ctx context.Context) error {
	if m.log == nil {
		return nil
	}

	var errs error
	if m.httpServer != nil {
		m.log.Info("Stopping", zap.String("service", "http"))
		errs = multierr.Append(errs, m.httpServer.Shutdown(ctx))
	}

	if m.registry != nil {
		m.log.Info("Stopping", zap.String("service", "registry"))
		if err := m.registry.Close(ctx); err != nil {
			m.log.Warn("Some features failed to shut down", zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}

	if err := m.closeStores(); err != nil {
		m.log.Error("Failed closing store", zap.Error(err))
		errs = multierr.Append(errs, err)
	}

	m.wg.Wait()
	if m.cancel != nil {
		m.cancel()
	}
	_ = m.log.Sync()
	return errs
}
