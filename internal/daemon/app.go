// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rs/zerolog"
)

// Runner is a long-lived background loop that stops when ctx is done.
type Runner interface {
	Run(ctx context.Context) error
}

// App owns the runtime lifecycle: the site server through Manager, plus the
// task worker and beat scheduler.
type App struct {
	logger    zerolog.Logger
	manager   Manager
	worker    Runner
	scheduler Runner
}

// AppOption configures optional App components.
type AppOption func(*App)

// WithWorker runs w alongside the server.
func WithWorker(w Runner) AppOption {
	return func(a *App) { a.worker = w }
}

// WithScheduler runs the beat alongside the server.
func WithScheduler(s Runner) AppOption {
	return func(a *App) { a.scheduler = s }
}

// NewApp creates a new App orchestrator. manager may be nil for a
// worker-only process.
func NewApp(logger zerolog.Logger, manager Manager, opts ...AppOption) *App {
	a := &App{logger: logger, manager: manager}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts all owned subsystems and blocks until ctx is cancelled or one
// of them fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil && a.worker == nil && a.scheduler == nil {
		return ErrNothingToRun
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.worker != nil {
		g.Go(func() error {
			a.logger.Info().Str("event", "worker.start").Msg("task worker started")
			return a.worker.Run(ctx)
		})
	}

	if a.scheduler != nil {
		g.Go(func() error {
			a.logger.Info().Str("event", "beat.start").Msg("beat scheduler started")
			err := a.scheduler.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	// Main server lifecycle.
	if a.manager != nil {
		g.Go(func() error {
			err := a.manager.Start(ctx)
			if err != nil {
				_ = a.manager.Shutdown(context.Background())
			}
			return err
		})
	}

	return g.Wait()
}
