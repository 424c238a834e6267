// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/ManuGH/sitekit/internal/config"
	"github.com/ManuGH/sitekit/internal/daemon"
	"github.com/ManuGH/sitekit/internal/health"
	sitelog "github.com/ManuGH/sitekit/internal/log"
	"github.com/ManuGH/sitekit/internal/version"
	"github.com/rs/zerolog"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  sitekit [-version] [serve]      run the site, task worker and beat")
	fmt.Fprintln(os.Stderr, "  sitekit worker                  run the task worker only")
	fmt.Fprintln(os.Stderr, "  sitekit migrate                 apply database migrations")
	fmt.Fprintln(os.Stderr, "  sitekit collectstatic           copy static files into STATIC_ROOT")
	fmt.Fprintln(os.Stderr, "  sitekit config check|keys       validate or document the environment")
	fmt.Fprintln(os.Stderr, "  sitekit healthcheck [-mode ready|live]")
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:], config.OSSource(), os.Stdout, os.Stderr))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	command := "serve"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}
	switch command {
	case "serve", "worker", "migrate", "collectstatic":
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		usage()
		os.Exit(2)
	}

	// Safe defaults until the configuration is resolved.
	sitelog.Configure(sitelog.Config{
		Level:   "info",
		Service: daemon.ServiceName,
		Version: version.Version,
	})
	logger := sitelog.WithComponent("daemon")

	cfg, err := config.Resolve(config.OSSource())
	if err != nil {
		fatalConfig(logger, err)
	}
	daemon.ConfigureLogging(cfg, version.Version, os.Stdout)
	defer func() { _ = sitelog.Close() }()
	logger = sitelog.WithComponent("daemon")

	ctx, stop := daemon.WaitForShutdown()
	defer stop()

	logger.Info().
		Str("event", "config.loaded").
		Str("command", command).
		Str("env", cfg.Environment.String()).
		Bool("debug", cfg.Debug).
		Msg("configuration resolved")

	switch command {
	case "serve":
		err = runServe(ctx, cfg, logger)
	case "worker":
		err = runWorker(ctx, cfg, logger)
	case "migrate":
		err = runMigrate(ctx, cfg, os.Stdout)
	case "collectstatic":
		err = runCollectStatic(ctx, cfg, os.Stdout)
	}
	if err != nil {
		logger.Error().Err(err).Str("command", command).Msg("command failed")
		stop()
		_ = sitelog.Close()
		os.Exit(1)
	}
}

// fatalConfig logs a resolution failure with its variable and exits.
func fatalConfig(logger zerolog.Logger, err error) {
	ev := logger.Fatal().Err(err).Str("event", "config.load_failed")
	var ce *config.ConfigurationError
	if errors.As(err, &ce) {
		ev = ev.Str("key", ce.Key).Str("kind", ce.Kind.Error())
	}
	ev.Msg("failed to resolve configuration")
}

func runServe(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return fmt.Errorf("startup checks: %w", err)
	}

	rt, err := daemon.Bootstrap(ctx, cfg, version.Version)
	if err != nil {
		return err
	}
	if _, err := rt.Migrate(ctx); err != nil {
		_ = rt.Close(context.WithoutCancel(ctx))
		return fmt.Errorf("migrate: %w", err)
	}

	handler, err := rt.Handler()
	if err != nil {
		_ = rt.Close(context.WithoutCancel(ctx))
		return err
	}

	mgr, err := daemon.NewManager(cfg.Server, daemon.Deps{
		Logger:         logger,
		Config:         cfg,
		Handler:        handler,
		MetricsHandler: rt.MetricsHandler(),
	})
	if err != nil {
		_ = rt.Close(context.WithoutCancel(ctx))
		return err
	}
	rt.RegisterShutdownHooks(mgr)

	app := daemon.NewApp(logger, mgr,
		daemon.WithWorker(rt.Worker()),
		daemon.WithScheduler(rt.Scheduler),
	)
	return app.Run(ctx)
}

func runWorker(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	if cfg.Tasks.Broker == config.BrokerMemory {
		logger.Warn().Msg("worker with the in-memory broker only sees tasks published by itself")
	}
	rt, err := daemon.Bootstrap(ctx, cfg, version.Version)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()

	return daemon.NewApp(logger, nil, daemon.WithWorker(rt.Worker())).Run(ctx)
}
