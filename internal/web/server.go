// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package web builds the HTTP surface of the site from the resolved
// configuration.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ManuGH/sitekit/internal/config"
	"github.com/ManuGH/sitekit/internal/health"
	"github.com/ManuGH/sitekit/internal/log"
	"github.com/ManuGH/sitekit/internal/mail"
	"github.com/ManuGH/sitekit/internal/reporting"
	"github.com/ManuGH/sitekit/internal/staticfiles"
	"github.com/ManuGH/sitekit/internal/storage"
	"github.com/ManuGH/sitekit/internal/tasks"
	"github.com/ManuGH/sitekit/internal/templates"
	"github.com/go-chi/chi/v5"
)

// SiteStore reads and writes the sites table.
type SiteStore interface {
	Current(ctx context.Context, id int) (storage.Site, error)
	Save(ctx context.Context, site storage.Site) error
}

// Sitemap serves and invalidates the cached sitemap document.
type Sitemap interface {
	XML(ctx context.Context) ([]byte, error)
	Invalidate()
}

// Deps are the collaborators of the HTTP surface. Reporter, Tasks, Mailer
// and Manifest are optional.
type Deps struct {
	Config    config.Config
	Templates templates.Loader
	Sites     SiteStore
	Sitemap   Sitemap
	Health    *health.Manager
	Reporter  *reporting.Reporter
	Mailer    mail.Mailer
	Tasks     tasks.Producer
	Manifest  *staticfiles.Manifest
}

// Validate checks the required dependencies.
func (d Deps) Validate() error {
	if d.Templates == nil {
		return errors.New("web: templates loader is required")
	}
	if d.Sites == nil {
		return errors.New("web: site store is required")
	}
	if d.Sitemap == nil {
		return errors.New("web: sitemap is required")
	}
	if d.Health == nil {
		return errors.New("web: health manager is required")
	}
	return nil
}

// Server holds the handlers of the site.
type Server struct {
	cfg       config.Config
	templates templates.Loader
	sites     SiteStore
	sitemap   Sitemap
	health    *health.Manager
	reporter  *reporting.Reporter
	mailer    mail.Mailer
	tasks     tasks.Producer
	manifest  *staticfiles.Manifest
}

// adminMailInterval limits error mail to ADMINS during an error storm.
const adminMailInterval = 10 * time.Second

// New validates deps and creates a Server.
func New(d Deps) (*Server, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:       d.Config,
		templates: d.Templates,
		sites:     d.Sites,
		sitemap:   d.Sitemap,
		health:    d.Health,
		reporter:  d.Reporter,
		tasks:     d.Tasks,
		manifest:  d.Manifest,
	}
	if d.Mailer != nil {
		s.mailer = mail.NewThrottled(d.Mailer, adminMailInterval, 5)
	}
	return s, nil
}

// Handler builds the router: the middleware chain named in
// cfg.Middleware, then every enabled route set.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewRouter()

	chain, err := s.middlewareChain(s.cfg.Middleware)
	if err != nil {
		return nil, err
	}
	r.Use(chain...)

	names := make([]string, 0)
	for _, set := range BuildRoutes(s.cfg) {
		set.Mount(r, s)
		names = append(names, set.Name)
	}
	r.NotFound(s.notFound)

	logger := log.WithComponent("web")
	logger.Info().
		Strs("middleware", s.cfg.Middleware).
		Strs("routes", names).
		Msg("router built")
	return r, nil
}
