// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package web

import (
	"bytes"
	"context"
	"net/http"

	"github.com/ManuGH/sitekit/internal/log"
	"github.com/ManuGH/sitekit/internal/storage"
	"github.com/ManuGH/sitekit/internal/web/middleware"
	"gopkg.in/yaml.v3"
)

const siteStylesheet = "css/site.css"

type indexData struct {
	Lang       string
	Stylesheet string
	Site       storage.Site
}

type robotsData struct {
	Scheme string
	Host   string
}

// currentSite prefers the site attached by the current_site middleware.
func (s *Server) currentSite(ctx context.Context) storage.Site {
	if site, ok := middleware.SiteFromContext(ctx); ok {
		return site
	}
	site, err := s.sites.Current(ctx, s.cfg.Site.ID)
	if err != nil {
		logger := log.WithComponentFromContext(ctx, "sites")
		logger.Warn().Err(err).
			Int(log.FieldSiteID, s.cfg.Site.ID).
			Msg("site lookup failed, using default")
		return storage.DefaultSite(s.cfg.Site.ID)
	}
	return site
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{
		Lang:       middleware.LocaleFromContext(r.Context()).String(),
		Stylesheet: s.manifest.URL(s.cfg.Storage.StaticURL, siteStylesheet),
		Site:       s.currentSite(r.Context()),
	}
	s.render(w, r, http.StatusOK, "index.html", "text/html; charset=utf-8", data)
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if middleware.IsSecure(r) {
		scheme = "https"
	}
	s.render(w, r, http.StatusOK, "robots.txt", "text/plain", robotsData{Scheme: scheme, Host: r.Host})
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	body, err := s.sitemap.XML(r.Context())
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "sitemap")
		logger.Error().Err(err).Msg("sitemap build failed")
		s.renderError(w, r, http.StatusInternalServerError, "")
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(body)
}

// handleToolbar dumps the masked configuration for the debug toolbar.
func (s *Server) handleToolbar(w http.ResponseWriter, r *http.Request) {
	out, err := yaml.Marshal(s.cfg.Masked())
	if err != nil {
		s.renderError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
	_, _ = w.Write(out)
}

func handleSentryCheck(http.ResponseWriter, *http.Request) {
	panic("Verify Sentry is configured and working")
}

// render executes name into a buffer so a template error can still
// produce a clean error page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, contentType string, data any) {
	var buf bytes.Buffer
	if err := s.templates.Render(&buf, name, data); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "web")
		logger.Error().Err(err).
			Str("template", name).
			Msg("template render failed")
		s.renderError(w, r, http.StatusInternalServerError, "")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
