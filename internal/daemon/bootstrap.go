// SPDX-License-Identifier: MIT

// Package daemon provides the core daemon bootstrapping and lifecycle management.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ManuGH/sitekit/internal/cache"
	"github.com/ManuGH/sitekit/internal/config"
	"github.com/ManuGH/sitekit/internal/health"
	"github.com/ManuGH/sitekit/internal/log"
	"github.com/ManuGH/sitekit/internal/mail"
	"github.com/ManuGH/sitekit/internal/metrics"
	"github.com/ManuGH/sitekit/internal/reporting"
	"github.com/ManuGH/sitekit/internal/sitemap"
	"github.com/ManuGH/sitekit/internal/staticfiles"
	"github.com/ManuGH/sitekit/internal/storage"
	"github.com/ManuGH/sitekit/internal/tasks"
	"github.com/ManuGH/sitekit/internal/telemetry"
	"github.com/ManuGH/sitekit/internal/templates"
	"github.com/ManuGH/sitekit/internal/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ServiceName identifies the process in logs, traces and error reports.
const ServiceName = "sitekit"

// ConfigureLogging applies the resolved logging settings to the global
// logger. Web and worker processes call it with the same config.
func ConfigureLogging(cfg config.Config, version string, out io.Writer) {
	log.Configure(log.Config{
		Level:   string(cfg.Logging.Level),
		Format:  string(cfg.Logging.Format),
		Output:  out,
		File:    cfg.Logging.File,
		Service: ServiceName,
		Version: version,
	})
}

// Runtime holds every collaborator built from the resolved configuration.
type Runtime struct {
	Config    config.Config
	Version   string
	DB        *storage.DB
	Sites     *storage.Sites
	Cache     cache.Cache
	Templates templates.Loader
	Sitemap   *sitemap.Builder
	Queue     tasks.Queue
	Registry  *tasks.Registry
	Scheduler *tasks.Scheduler
	Mailer    mail.Mailer
	Reporter  *reporting.Reporter
	Health    *health.Manager
	Manifest  *staticfiles.Manifest
	Telemetry *telemetry.Provider

	closers []namedHook
	logger  zerolog.Logger
}

// Bootstrap connects to the database, cache and broker and wires the task
// registry. On error everything opened so far is closed again.
func Bootstrap(ctx context.Context, cfg config.Config, version string) (rt *Runtime, err error) {
	rt = &Runtime{
		Config:  cfg,
		Version: version,
		logger:  log.WithComponent("daemon"),
	}
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
			rt = nil
		}
	}()

	metrics.RecordConfig(cfg.Environment.String(), cfg.Debug)

	rt.Telemetry, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Environment.String(),
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		Insecure:       !cfg.Environment.Deployed(),
	})
	if err != nil {
		return rt, fmt.Errorf("telemetry: %w", err)
	}
	rt.onClose("telemetry", rt.Telemetry.Shutdown)

	rt.Reporter, err = reporting.Init(cfg.ErrorReporting, cfg.Environment, version)
	if err != nil {
		return rt, err
	}
	rt.onClose("reporting", func(context.Context) error {
		rt.Reporter.Flush(2 * time.Second)
		return nil
	})

	rt.DB, err = storage.Open(ctx, DatabaseConfig(cfg), storage.DefaultPool())
	if err != nil {
		return rt, err
	}
	rt.onClose("database", func(context.Context) error { return rt.DB.Close() })
	rt.Sites = storage.NewSites(rt.DB)

	rt.Cache, err = cache.New(cfg.Cache, log.WithComponent("cache"))
	if err != nil {
		return rt, fmt.Errorf("cache: %w", err)
	}
	rt.onClose("cache", func(context.Context) error { return rt.Cache.Close() })

	rt.Templates, err = templates.New(cfg.Templates, log.WithComponent("templates"))
	if err != nil {
		return rt, fmt.Errorf("templates: %w", err)
	}
	rt.onClose("templates", func(context.Context) error { return rt.Templates.Close() })

	if cfg.Storage.ManifestStorage {
		rt.Manifest, err = staticfiles.LoadManifest(cfg.Storage.StaticRoot)
		if err != nil {
			// Unhashed names still resolve; collectstatic has not run yet.
			rt.logger.Warn().Err(err).Str("path", cfg.Storage.StaticRoot).Msg("static manifest unavailable")
			rt.Manifest, err = nil, nil
		}
	}

	rt.Sitemap = sitemap.New(rt.Cache, cfg.Cache.Backend, rt.Sites, cfg.Site)

	rt.Queue, err = tasks.New(cfg.Tasks)
	if err != nil {
		return rt, fmt.Errorf("task broker: %w", err)
	}
	rt.onClose("broker", func(context.Context) error { return rt.Queue.Close() })

	rt.Mailer = mail.New(cfg.Email, log.WithComponent("mail"))
	rt.Registry = tasks.NewRegistry()
	tasks.RegisterBuiltins(rt.Registry, rt.Sitemap, rt.Mailer)
	rt.Scheduler = tasks.NewScheduler(rt.Queue, cfg.Tasks.BeatInterval, tasks.DefaultSchedule()...)

	rt.Health = health.NewManager(version)
	rt.registerCheckers()

	rt.logger.Info().
		Str("env", cfg.Environment.String()).
		Str("db", string(cfg.Database.Engine)).
		Str("cache", string(cfg.Cache.Backend)).
		Str("broker", string(cfg.Tasks.Broker)).
		Str("mail", string(cfg.Email.Backend)).
		Bool("reporting", rt.Reporter.Enabled()).
		Msg("runtime ready")
	return rt, nil
}

// DatabaseConfig anchors a relative sqlite path at the project root.
func DatabaseConfig(cfg config.Config) config.DatabaseConfig {
	db := cfg.Database
	if db.Engine == config.EngineSQLite && db.Name != ":memory:" && !filepath.IsAbs(db.Name) {
		db.Name = filepath.Join(cfg.RootDir, db.Name)
	}
	return db
}

func (rt *Runtime) registerCheckers() {
	rt.Health.RegisterChecker(health.NewPingChecker("db", rt.DB.PingContext))
	if p, ok := rt.Cache.(cache.Pinger); ok {
		rt.Health.RegisterChecker(health.NewPingChecker("cache", p.HealthCheck))
	}
	if p, ok := rt.Queue.(interface{ HealthCheck(context.Context) error }); ok {
		rt.Health.RegisterChecker(health.NewPingChecker("broker", p.HealthCheck))
	}
	rt.Health.RegisterChecker(health.NewDirChecker("media", rt.Config.Storage.MediaRoot))
	rt.Health.RegisterChecker(health.NewLastRunChecker("beat", 2*rt.Scheduler.Interval(), rt.Scheduler.LastRun))
}

func (rt *Runtime) onClose(name string, fn ShutdownHook) {
	rt.closers = append(rt.closers, namedHook{name: name, hook: fn})
}

// Migrate applies pending schema migrations.
func (rt *Runtime) Migrate(ctx context.Context) ([]string, error) {
	return storage.Migrate(ctx, rt.DB)
}

// Handler builds the site router. Error mail to ADMINS goes through the
// mail.send task.
func (rt *Runtime) Handler() (http.Handler, error) {
	srv, err := web.New(web.Deps{
		Config:    rt.Config,
		Templates: rt.Templates,
		Sites:     rt.Sites,
		Sitemap:   rt.Sitemap,
		Health:    rt.Health,
		Reporter:  rt.Reporter,
		Mailer:    tasks.NewQueuedMailer(rt.Queue),
		Tasks:     rt.Queue,
		Manifest:  rt.Manifest,
	})
	if err != nil {
		return nil, err
	}
	return srv.Handler()
}

// MetricsHandler serves /metrics on METRICS_ADDR, or nil when metrics
// share the site listener.
func (rt *Runtime) MetricsHandler() http.Handler {
	if rt.Config.Server.MetricsAddr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Worker builds the task worker.
func (rt *Runtime) Worker() *tasks.Worker {
	return tasks.NewWorker(rt.Queue, rt.Registry,
		tasks.WithConcurrency(rt.Config.Tasks.Workers),
		tasks.WithReporter(rt.Reporter),
	)
}

// Close releases everything Bootstrap opened, in reverse order.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		c := rt.closers[i]
		if err := c.hook(ctx); err != nil {
			rt.logger.Error().Err(err).Str("hook", c.name).Msg("close failed")
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// RegisterShutdownHooks hands the runtime's closers to m so they run after
// the servers stop.
func (rt *Runtime) RegisterShutdownHooks(m Manager) {
	closers := rt.closers
	rt.closers = nil
	for _, c := range closers {
		m.RegisterShutdownHook(c.name, c.hook)
	}
}

// WaitForShutdown waits for interrupt/termination signals.
func WaitForShutdown() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
