// SPDX-License-Identifier: MIT

package web

import (
	"fmt"
	"net/http"

	"github.com/ManuGH/sitekit/internal/config"
	"github.com/ManuGH/sitekit/internal/log"
	"github.com/ManuGH/sitekit/internal/web/middleware"
	"golang.org/x/text/language"
)

// middlewareFactory builds one named link of the chain.
type middlewareFactory func(s *Server) func(http.Handler) http.Handler

// middlewareTable maps the names in cfg.Middleware to constructors.
var middlewareTable = map[string]middlewareFactory{
	config.MiddlewareDebugToolbar: func(s *Server) func(http.Handler) http.Handler {
		return middleware.DebugToolbar(s.cfg.InternalIPs)
	},
	config.MiddlewareRecoverer: func(s *Server) func(http.Handler) http.Handler {
		return middleware.Recoverer(s.handlePanic)
	},
	config.MiddlewareRequestID: func(*Server) func(http.Handler) http.Handler {
		return middleware.RequestID
	},
	config.MiddlewareLogging: func(*Server) func(http.Handler) http.Handler {
		return log.Middleware()
	},
	config.MiddlewareMetrics: func(*Server) func(http.Handler) http.Handler {
		return middleware.Metrics()
	},
	config.MiddlewareTracing: func(*Server) func(http.Handler) http.Handler {
		return middleware.Tracing("sitekit")
	},
	config.MiddlewareSecurity: func(s *Server) func(http.Handler) http.Handler {
		return middleware.Security(s.cfg.Security, redirectExempt...)
	},
	config.MiddlewareAllowedHosts: func(s *Server) func(http.Handler) http.Handler {
		return middleware.AllowedHosts(s.cfg.AllowedHosts)
	},
	config.MiddlewareLocale: func(s *Server) func(http.Handler) http.Handler {
		return middleware.Locale(supportedLanguages(s.cfg.Locale), s.cfg.Locale.UseI18N)
	},
	config.MiddlewareCSRF: func(s *Server) func(http.Handler) http.Handler {
		return middleware.CSRF(middleware.CSRFConfig{CookieSecure: s.cfg.Security.CSRFCookieSecure})
	},
	config.MiddlewareCurrentSite: func(s *Server) func(http.Handler) http.Handler {
		return middleware.CurrentSite(s.sites, s.cfg.Site.ID)
	},
	config.MiddlewareRateLimit: func(s *Server) func(http.Handler) http.Handler {
		return middleware.PerMinute(s.cfg.Server.RateLimitRPM)
	},
}

// middlewareChain resolves names in order. An unknown name is an error.
func (s *Server) middlewareChain(names []string) ([]func(http.Handler) http.Handler, error) {
	chain := make([]func(http.Handler) http.Handler, 0, len(names))
	for _, name := range names {
		factory, ok := middlewareTable[name]
		if !ok {
			return nil, fmt.Errorf("web: unknown middleware %q", name)
		}
		chain = append(chain, factory(s))
	}
	return chain, nil
}

// supportedLanguages puts LANGUAGE_CODE first, followed by English.
func supportedLanguages(cfg config.LocaleConfig) []language.Tag {
	tags := make([]language.Tag, 0, 2)
	if tag, err := language.Parse(cfg.LanguageCode); err == nil {
		tags = append(tags, tag)
	}
	if len(tags) == 0 || tags[0] != language.English {
		tags = append(tags, language.English)
	}
	return tags
}
