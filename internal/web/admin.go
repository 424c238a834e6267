// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package web

import (
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/ManuGH/sitekit/internal/log"
	"github.com/ManuGH/sitekit/internal/storage"
	"github.com/ManuGH/sitekit/internal/tasks"
	"github.com/ManuGH/sitekit/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const (
	maxDomainLength = 100
	maxNameLength   = 50
)

type adminData struct {
	Site      storage.Site
	Saved     bool
	Error     string
	Action    string
	CSRFToken string
}

func (s *Server) mountAdmin(r chi.Router) {
	sec := s.cfg.Security
	if !sec.AdminEnabled() {
		r.HandleFunc("/*", s.handleAdminClosed)
		return
	}
	r.Use(chimw.BasicAuth("sitekit admin", map[string]string{sec.AdminUsername: sec.AdminPassword}))
	r.Get("/", s.handleAdminForm)
	r.Post("/", s.handleAdminSave)
}

// handleAdminClosed answers every admin request while no credentials are
// configured.
func (s *Server) handleAdminClosed(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusForbidden, "The admin is closed.")
}

func (s *Server) adminAction() string {
	return "/" + s.cfg.Site.AdminPath + "/"
}

func (s *Server) handleAdminForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "admin.html", "text/html; charset=utf-8", adminData{
		Site:      s.currentSite(r.Context()),
		Saved:     r.URL.Query().Get("saved") == "1",
		Action:    s.adminAction(),
		CSRFToken: middleware.CSRFToken(r.Context()),
	})
}

func (s *Server) handleAdminSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "")
		return
	}
	site := storage.Site{
		ID:     s.cfg.Site.ID,
		Domain: strings.TrimSpace(r.PostForm.Get("domain")),
		Name:   strings.TrimSpace(r.PostForm.Get("name")),
	}
	if err := validateSite(site); err != nil {
		s.render(w, r, http.StatusBadRequest, "admin.html", "text/html; charset=utf-8", adminData{
			Site:      site,
			Error:     err.Error(),
			Action:    s.adminAction(),
			CSRFToken: middleware.CSRFToken(ctx),
		})
		return
	}

	logger := log.WithComponentFromContext(ctx, "admin")
	if err := s.sites.Save(ctx, site); err != nil {
		logger.Error().Err(err).Int(log.FieldSiteID, site.ID).Msg("site save failed")
		s.renderError(w, r, http.StatusInternalServerError, "")
		return
	}
	s.sitemap.Invalidate()
	if s.tasks != nil {
		if _, err := tasks.Enqueue(ctx, s.tasks, tasks.SitemapRefresh, nil); err != nil {
			logger.Warn().Err(err).Msg("sitemap refresh not queued")
		}
	}
	logger.Info().
		Str(log.FieldEvent, "site.saved").
		Int(log.FieldSiteID, site.ID).
		Str(log.FieldHost, site.Domain).
		Msg("site updated")
	http.Redirect(w, r, s.adminAction()+"?saved=1", http.StatusSeeOther)
}

func validateSite(site storage.Site) error {
	switch {
	case site.Domain == "":
		return errors.New("Domain is required.")
	case len(site.Domain) > maxDomainLength:
		return errors.New("Domain is too long.")
	case strings.ContainsFunc(site.Domain, unicode.IsSpace) || strings.Contains(site.Domain, "/"):
		return errors.New("Domain must be a host name without spaces or slashes.")
	case site.Name == "":
		return errors.New("Name is required.")
	case len(site.Name) > maxNameLength:
		return errors.New("Name is too long.")
	}
	return nil
}
