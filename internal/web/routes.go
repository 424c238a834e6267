// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package web

import (
	"net/http"
	"strings"

	"github.com/ManuGH/sitekit/internal/config"
	"github.com/ManuGH/sitekit/internal/staticfiles"
	"github.com/ManuGH/sitekit/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteSet is a group of routes mounted when Enabled holds for the
// resolved configuration.
type RouteSet struct {
	Name    string
	Enabled func(cfg config.Config) bool
	Mount   func(r chi.Router, s *Server)
}

func always(config.Config) bool { return true }

// redirectExempt stays reachable over plain HTTP for health checks and scrapers
// inside the deployment.
var redirectExempt = []string{"/healthz", "/readyz", "/metrics"}

// routeTable lists every route set in mount order.
var routeTable = []RouteSet{
	{
		Name:    "site",
		Enabled: always,
		Mount: func(r chi.Router, s *Server) {
			r.Get("/", s.handleIndex)
			r.Get("/robots.txt", s.handleRobots)
			r.Get("/sitemap.xml", s.handleSitemap)
		},
	},
	{
		Name:    "health",
		Enabled: always,
		Mount: func(r chi.Router, s *Server) {
			r.Get("/healthz", s.health.ServeHealth)
			r.Get("/readyz", s.health.ServeReady)
		},
	},
	{
		Name:    "metrics",
		Enabled: func(cfg config.Config) bool { return cfg.Server.MetricsAddr == "" },
		Mount: func(r chi.Router, _ *Server) {
			r.Handle("/metrics", promhttp.Handler())
		},
	},
	{
		Name:    "admin",
		Enabled: always,
		Mount: func(r chi.Router, s *Server) {
			r.Route("/"+s.cfg.Site.AdminPath, s.mountAdmin)
		},
	},
	{
		Name:    "static",
		Enabled: func(cfg config.Config) bool { return cfg.Debug },
		Mount: func(r chi.Router, s *Server) {
			st := s.cfg.Storage
			if isLocalPrefix(st.StaticURL) {
				r.Handle(st.StaticURL+"*", staticfiles.Handler(st))
			}
			if isLocalPrefix(st.MediaURL) && st.MediaRoot != "" {
				r.Handle(st.MediaURL+"*", http.StripPrefix(st.MediaURL, http.FileServer(http.Dir(st.MediaRoot))))
			}
		},
	},
	{
		Name:    "error-previews",
		Enabled: config.Config.DevelopmentDebug,
		Mount: func(r chi.Router, s *Server) {
			r.Get("/403/", s.previewError(http.StatusForbidden, "Permission Denied"))
			r.Get("/404/", s.previewError(http.StatusNotFound, "Page not Found"))
			r.Get("/500/", s.previewError(http.StatusInternalServerError, ""))
		},
	},
	{
		Name:    "debug",
		Enabled: config.Config.DevelopmentDebug,
		Mount: func(r chi.Router, s *Server) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.InternalOnly(s.cfg.InternalIPs, http.HandlerFunc(s.notFound)))
				r.Get("/__debug__/sentry/", handleSentryCheck)
				// The profiler claims every method on the toolbar root; the GET
				// registered after it takes that route back.
				r.Mount(strings.TrimSuffix(middleware.ToolbarPath, "/"), chimw.Profiler())
				r.Get(middleware.ToolbarPath, s.handleToolbar)
			})
		},
	},
}

// BuildRoutes returns the route sets enabled for cfg, in mount order.
func BuildRoutes(cfg config.Config) []RouteSet {
	var sets []RouteSet
	for _, set := range routeTable {
		if set.Enabled(cfg) {
			sets = append(sets, set)
		}
	}
	return sets
}

// isLocalPrefix reports whether url is a path served by this process
// rather than an absolute URL on another host.
func isLocalPrefix(url string) bool {
	return strings.HasPrefix(url, "/") && strings.HasSuffix(url, "/") && !strings.HasPrefix(url, "//")
}
