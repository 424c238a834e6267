// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/sitekit/internal/config"
	"github.com/rs/zerolog"
)

// failureShutdownTimeout bounds the shutdown that follows a listener error.
const failureShutdownTimeout = 30 * time.Second

// ShutdownHook releases a resource after the listeners have stopped.
type ShutdownHook func(ctx context.Context) error

// Manager runs the site listener, plus the metrics listener when one is
// configured, and tears them down together.
type Manager interface {
	// Start serves until ctx is done or a listener fails.
	Start(ctx context.Context) error

	// Shutdown drains the listeners, then runs the hooks newest first.
	Shutdown(ctx context.Context) error

	RegisterShutdownHook(name string, hook ShutdownHook)
}

type namedHook struct {
	name string
	hook ShutdownHook
}

type manager struct {
	cfg    config.ServerConfig
	deps   Deps
	logger zerolog.Logger

	mu       sync.Mutex
	servers  []*namedServer
	hooks    []namedHook
	started  bool
	stopping bool
}

type namedServer struct {
	name string
	srv  *http.Server
}

// NewManager validates deps and returns a Manager for the given listeners.
func NewManager(serverCfg config.ServerConfig, deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	return &manager{
		cfg:    serverCfg,
		deps:   deps,
		logger: deps.Logger.With().Str("component", "manager").Logger(),
	}, nil
}

func (m *manager) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("start context is nil")
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("manager already started")
	}
	m.started = true
	if m.deps.MetricsHandler != nil && m.cfg.MetricsAddr != "" {
		m.servers = append(m.servers, &namedServer{name: "metrics", srv: &http.Server{
			Addr:              m.cfg.MetricsAddr,
			Handler:           m.deps.MetricsHandler,
			ReadHeaderTimeout: m.cfg.ReadTimeout / 2,
		}})
	}
	m.servers = append(m.servers, &namedServer{name: "site", srv: &http.Server{
		Addr:              m.cfg.ListenAddr,
		Handler:           m.deps.Handler,
		ReadTimeout:       m.cfg.ReadTimeout,
		ReadHeaderTimeout: m.cfg.ReadTimeout / 2,
		WriteTimeout:      m.cfg.WriteTimeout,
		IdleTimeout:       m.cfg.IdleTimeout,
	}})
	servers := append([]*namedServer(nil), m.servers...)
	m.mu.Unlock()

	m.logger.Info().
		Str("listen", m.cfg.ListenAddr).
		Str("metrics", m.cfg.MetricsAddr).
		Str("env", m.deps.Config.Environment.String()).
		Bool("debug", m.deps.Config.Debug).
		Dur("shutdown_timeout", m.cfg.ShutdownTimeout).
		Msg("starting listeners")

	errCh := make(chan error, len(servers))
	for _, s := range servers {
		go m.serve(s, errCh)
	}

	select {
	case err := <-errCh:
		m.logger.Error().Err(err).Msg("listener failed, shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureShutdownTimeout)
		defer cancel()
		if shutdownErr := m.Shutdown(shutdownCtx); shutdownErr != nil {
			return fmt.Errorf("server error and shutdown failure: %w", errors.Join(err, shutdownErr))
		}
		return err
	case <-ctx.Done():
		m.logger.Info().Msg("shutdown signal received")
		return m.Shutdown(context.WithoutCancel(ctx))
	}
}

func (m *manager) serve(s *namedServer, errCh chan<- error) {
	m.logger.Info().Str("server", s.name).Str("addr", s.srv.Addr).Msg("listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		m.logger.Error().Err(err).Str("event", s.name+".server.failed").Msg("listener failed")
		errCh <- fmt.Errorf("%s server: %w", s.name, err)
	}
}

func (m *manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return errors.New("shutdown context is nil")
	}

	m.mu.Lock()
	switch {
	case m.stopping:
		m.mu.Unlock()
		return nil
	case !m.started:
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	servers := append([]*namedServer(nil), m.servers...)
	hooks := append([]namedHook(nil), m.hooks...)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	for _, s := range servers {
		if err := s.srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s server shutdown: %w", s.name, err))
		}
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		began := time.Now()
		err := h.hook(ctx)
		ev := m.logger.Debug()
		if err != nil {
			ev = m.logger.Error().Err(err)
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
		}
		ev.Str("hook", h.name).Dur("duration", time.Since(began)).Msg("shutdown hook finished")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	m.logger.Info().Msg("stopped cleanly")
	return nil
}

// RegisterShutdownHook appends a hook. Hooks run in reverse registration
// order.
func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, namedHook{name: name, hook: hook})
}
