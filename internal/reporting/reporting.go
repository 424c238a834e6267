// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package reporting forwards unhandled errors to Sentry when enabled.
package reporting

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ManuGH/sitekit/internal/config"
	"github.com/ManuGH/sitekit/internal/log"
	"github.com/getsentry/sentry-go"
)

// Integration names accepted in ErrorReportingConfig.Integrations.
const (
	IntegrationHTTP  = "http"
	IntegrationTasks = "tasks"
)

// Option adjusts the sentry client options before the client is built.
type Option func(*sentry.ClientOptions)

// WithBeforeSend installs a hook that sees every event before transport.
func WithBeforeSend(fn func(*sentry.Event, *sentry.EventHint) *sentry.Event) Option {
	return func(o *sentry.ClientOptions) { o.BeforeSend = fn }
}

// Reporter captures errors and panics. The zero value and a Reporter built
// from a disabled config are no-ops.
type Reporter struct {
	hub          *sentry.Hub
	integrations []string
}

// Init builds a Reporter for the resolved settings.
func Init(cfg config.ErrorReportingConfig, env config.Environment, release string, opts ...Option) (*Reporter, error) {
	if !cfg.Enabled {
		return &Reporter{}, nil
	}

	co := sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      env.String(),
		Release:          release,
		AttachStacktrace: true,
		SendDefaultPII:   true,
	}
	for _, opt := range opts {
		opt(&co)
	}

	client, err := sentry.NewClient(co)
	if err != nil {
		return nil, fmt.Errorf("reporting: sentry client: %w", err)
	}

	logger := log.WithComponent("reporting")
	logger.Info().
		Str("environment", env.String()).
		Strs("integrations", cfg.Integrations).
		Msg("error reporting enabled")

	return &Reporter{
		hub:          sentry.NewHub(client, sentry.NewScope()),
		integrations: slices.Clone(cfg.Integrations),
	}, nil
}

// Enabled reports whether events are sent anywhere.
func (r *Reporter) Enabled() bool {
	return r != nil && r.hub != nil
}

// Integrated reports whether the named subsystem should report.
func (r *Reporter) Integrated(name string) bool {
	return r.Enabled() && slices.Contains(r.integrations, name)
}

// scoped clones the hub and tags it with the correlation ids in ctx.
func (r *Reporter) scoped(ctx context.Context, tags map[string]string) *sentry.Hub {
	hub := r.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		if id := log.RequestIDFromContext(ctx); id != "" {
			scope.SetTag(log.FieldRequestID, id)
		}
		if id := log.TaskIDFromContext(ctx); id != "" {
			scope.SetTag(log.FieldTaskID, id)
		}
		for k, v := range tags {
			scope.SetTag(k, v)
		}
	})
	return hub
}

// CaptureException sends err with optional tags.
func (r *Reporter) CaptureException(ctx context.Context, err error, tags map[string]string) {
	if !r.Enabled() || err == nil {
		return
	}
	r.scoped(ctx, tags).CaptureException(err)
}

// Recover reports a recovered panic value.
func (r *Reporter) Recover(ctx context.Context, recovered any, tags map[string]string) {
	if !r.Enabled() || recovered == nil {
		return
	}
	r.scoped(ctx, tags).RecoverWithContext(ctx, recovered)
}

// Flush waits for buffered events to be delivered.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if !r.Enabled() {
		return true
	}
	return r.hub.Flush(timeout)
}
