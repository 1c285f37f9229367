// Package bootstrap wires all dependencies and runs the compiler as a
// one-shot build, a source watcher or a preview server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	apihttp "github.com/artpar/modforge/adapters/http"
	"github.com/artpar/modforge/adapters/memory"
	"github.com/artpar/modforge/adapters/sqlite"
	"github.com/artpar/modforge/app"
	"github.com/artpar/modforge/config"
	"github.com/artpar/modforge/core/compiler"
	"github.com/artpar/modforge/core/exporter"
	"github.com/artpar/modforge/core/registry"
	"github.com/artpar/modforge/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	DB         *sqlite.DB // nil unless history uses the sqlite driver
	Builds     ports.BuildStore
	Registry   *registry.Registry
	Exporters  *exporter.Registry
	Metrics    *exporter.PrometheusExporter
	Service    *app.BuildService
	HTTPServer *http.Server

	version string
	holder  *config.Holder

	mu           sync.RWMutex
	config       *config.Config
	restartWatch context.CancelFunc
	onBuild      []func(app.Outcome, error)
	shutdownOnce sync.Once
}

// Options provides optional settings for application initialization.
type Options struct {
	// Version is reported by the preview server.
	Version string

	// LogOutput receives log lines (default: os.Stderr).
	LogOutput io.Writer

	// LogLevel and LogFormat override the logging config when set.
	LogLevel  string
	LogFormat string
}

// New creates and initializes the application from a loaded configuration.
func New(cfg *config.Config, opts Options) (*App, error) {
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Logging.Format = opts.LogFormat
	}
	logger := NewLogger(cfg.Logging, opts.LogOutput)

	a := &App{
		Logger:    logger,
		Registry:  registry.New(),
		Exporters: exporter.NewRegistry(),
		version:   opts.Version,
		config:    cfg,
	}

	a.Exporters.Register(exporter.NewLogExporter(logger))
	if cfg.Metrics.Enabled || cfg.Metrics.Textfile != "" {
		a.Metrics = exporter.NewPrometheusExporter(exporter.PrometheusConfig{
			Runtime: cfg.Metrics.Enabled,
		})
		a.Exporters.Register(a.Metrics)
		for _, c := range registryCollectors(a.Registry) {
			if err := a.Metrics.WithCustomMetric(c); err != nil {
				logger.Warn().Err(err).Msg("failed to register registry metric")
			}
		}
		logger.Debug().Msg("prometheus metrics enabled")
	}

	buildOpts := []app.BuildOption{app.WithTimeout(cfg.Compile.Timeout)}
	if cfg.History.Enabled {
		switch cfg.History.Driver {
		case config.HistoryMemory:
			a.Builds = memory.NewBuildStore()
			logger.Debug().Msg("in-memory build history enabled")
		default:
			if err := a.initDatabase(cfg.History.DSN); err != nil {
				return nil, fmt.Errorf("init history: %w", err)
			}
		}
		buildOpts = append(buildOpts, app.WithStore(a.Builds))
	}

	a.Service = app.NewBuildService(a.newCompiler(cfg), a.Registry, logger, buildOpts...)
	return a, nil
}

// NewWithHotReload creates the application from a config file and reloads
// it whenever the file changes or SIGHUP is received.
func NewWithHotReload(path string, opts Options) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a, err := New(cfg, opts)
	if err != nil {
		return nil, err
	}

	holder, err := config.NewHolder(path, a.Logger)
	if err != nil {
		a.Shutdown()
		return nil, err
	}
	a.holder = holder
	a.setConfig(holder.Get())
	holder.OnChange(a.applyConfig)

	return a, nil
}

func (a *App) initDatabase(dsn string) error {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	a.DB = db
	a.Builds = sqlite.NewBuildStore(db)
	a.Logger.Debug().Str("dsn", dsn).Msg("history database initialized")
	return nil
}

func (a *App) newCompiler(cfg *config.Config) *compiler.Compiler {
	return compiler.New(
		compiler.WithParallelism(cfg.Compile.Parallelism),
		compiler.WithObserver(a.Exporters),
	)
}

// registryCollectors exposes the loaded registry's size and revision.
func registryCollectors(r *registry.Registry) []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "modforge_registry_modules",
			Help: "Modules currently loaded in the registry",
		}, func() float64 { return float64(len(r.List())) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "modforge_registry_revision",
			Help: "Number of successful registry loads",
		}, func() float64 { return float64(r.Revision()) }),
	}
}

// Config returns the current configuration.
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

func (a *App) setConfig(cfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.config = cfg
}

// applyConfig applies the reloadable parts of a new configuration.
func (a *App) applyConfig(cfg *config.Config, changes []config.Change) {
	a.mu.Lock()
	a.config = cfg
	restart := a.restartWatch
	a.mu.Unlock()

	if config.Changed(changes, "logging.level") {
		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	}

	a.Service.Reconfigure(a.newCompiler(cfg), cfg.Compile.Timeout)

	if restart != nil && config.Changed(changes, "input.paths") {
		restart()
	}
}

// Reload re-reads the config file. It is a no-op without hot reload.
func (a *App) Reload() error {
	if a.holder == nil {
		return nil
	}
	return a.holder.Reload()
}

// Compile runs one build over the configured inputs, prunes history and
// writes the metrics textfile when configured.
func (a *App) Compile(ctx context.Context) (app.Outcome, error) {
	cfg := a.Config()
	out, err := a.Service.Build(ctx, cfg.Input.Paths...)
	a.afterBuild(ctx, out, err)

	if a.Metrics != nil && cfg.Metrics.Textfile != "" {
		if werr := a.Metrics.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			a.Logger.Warn().Err(werr).Str("path", cfg.Metrics.Textfile).Msg("failed to write metrics textfile")
		}
	}
	return out, err
}

// afterBuild prunes build history down to history.keep.
func (a *App) afterBuild(ctx context.Context, out app.Outcome, err error) {
	keep := a.Config().History.Keep
	if a.Builds == nil || keep == 0 {
		return
	}

	n, perr := a.Builds.Prune(ctx, keep)
	if perr != nil {
		a.Logger.Warn().Err(perr).Msg("failed to prune build history")
		return
	}
	if n > 0 {
		a.Logger.Debug().Int("pruned", n).Int("keep", keep).Msg("pruned build history")
	}
}

// OnBuild registers a callback run after every watched rebuild.
func (a *App) OnBuild(fn func(app.Outcome, error)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onBuild = append(a.onBuild, fn)
}

// Watch rebuilds on every source change until ctx is cancelled. A reload
// that changes input paths restarts the watcher on the new paths.
func (a *App) Watch(ctx context.Context) error {
	for {
		cfg := a.Config()
		wctx, cancel := context.WithCancel(ctx)

		a.mu.Lock()
		a.restartWatch = cancel
		callbacks := slices.Clone(a.onBuild)
		a.mu.Unlock()

		w := app.NewWatcher(a.Service, a.Logger, cfg.Watch.Debounce)
		w.OnBuild(func(out app.Outcome, err error) { a.afterBuild(ctx, out, err) })
		for _, fn := range callbacks {
			w.OnBuild(fn)
		}

		a.Logger.Info().Strs("paths", cfg.Input.Paths).Msg("watching module sources")
		err := w.Run(wctx, cfg.Input.Paths...)
		cancel()

		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		a.Logger.Info().Msg("input paths changed, restarting source watcher")
	}
}

// Handler returns the preview API handler.
func (a *App) Handler() http.Handler {
	cfg := a.Config()
	rc := apihttp.RouterConfig{
		MetricsPath: cfg.Metrics.Path,
		Version:     a.version,
		Timeout:     cfg.Server.WriteTimeout,
		APIBasePath: cfg.Server.APIBasePath,
	}
	if pulls := a.Exporters.PullExporters(); len(pulls) > 0 && cfg.Metrics.Enabled {
		rc.MetricsHandler = pulls[0].Handler()
	}
	if a.Builds != nil {
		rc.Builds = a.Builds
	}
	return apihttp.NewRouter(a.Registry, a.Logger, rc)
}

// Run starts the preview server and the source watcher and blocks until ctx
// is cancelled, SIGINT/SIGTERM is received or the server fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := a.Config()
	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if a.holder != nil {
		a.Logger.Info().
			Str("config", a.holder.Path()).
			Strs("reloadable", config.ReloadableFields()).
			Strs("restart_only", config.NonReloadableFields()).
			Msg("config hot reload enabled")
		if err := a.holder.Watch(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch disabled, SIGHUP still reloads")
		}
	}

	errCh := make(chan error, 2)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()
	go func() {
		if err := a.Watch(ctx); err != nil {
			errCh <- fmt.Errorf("watch: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case runErr = <-errCh:
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
		a.Logger.Info().Msg("shutting down")
	}

	cancel()
	if err := a.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown gracefully stops the application. Safe to call twice.
func (a *App) Shutdown() error {
	var shutdownErr error
	a.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if a.holder != nil {
			a.holder.Stop()
		}

		if a.HTTPServer != nil {
			if err := a.HTTPServer.Shutdown(ctx); err != nil {
				a.Logger.Error().Err(err).Msg("http server shutdown error")
				shutdownErr = err
			}
		}

		if a.DB != nil {
			if err := a.DB.Close(); err != nil {
				a.Logger.Error().Err(err).Msg("database close error")
				shutdownErr = err
			}
		}

		a.Logger.Debug().Msg("shutdown complete")
	})
	return shutdownErr
}

// NewLogger builds the process logger. The level is applied globally so a
// config reload can change it.
func NewLogger(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(w).With().Timestamp().Logger()
}
