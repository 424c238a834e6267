// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package web

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/sitekit/internal/log"
	"github.com/ManuGH/sitekit/internal/mail"
	"github.com/ManuGH/sitekit/internal/reporting"
)

type errorData struct {
	Message string
}

// defaultServerEmail is the sender of error mail when SERVER_EMAIL is unset.
const defaultServerEmail = "root@localhost"

// renderError writes the "<status>.html" page, or a plain text body when
// that template is missing or fails.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	var buf bytes.Buffer
	name := fmt.Sprintf("%d.html", status)
	if err := s.templates.Render(&buf, name, errorData{Message: msg}); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "web")
		logger.Warn().Err(err).
			Str("template", name).
			Msg("error page unavailable")
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound, "")
}

func (s *Server) previewError(status int, msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderError(w, r, status, msg)
	}
}

// handlePanic is the Recoverer callback: report, notify ADMINS, then
// render the 500 page.
func (s *Server) handlePanic(w http.ResponseWriter, r *http.Request, rec any, stack []byte) {
	ctx := r.Context()
	if s.reporter.Integrated(reporting.IntegrationHTTP) {
		s.reporter.Recover(ctx, rec, map[string]string{
			"route":  r.URL.Path,
			"method": r.Method,
		})
	}

	if !s.cfg.Debug && s.mailer != nil {
		from := s.cfg.Email.ServerEmail
		if from == "" {
			from = defaultServerEmail
		}
		subject := "Internal Server Error: " + r.URL.Path
		body := fmt.Sprintf("%v\n\n%s", rec, stack)
		// The request context may already be gone.
		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := mail.MailAdmins(mctx, s.mailer, from, s.cfg.People.Admins, subject, body); err != nil {
			logger := log.WithComponentFromContext(ctx, "mail")
			logger.Warn().Err(err).Msg("error mail to admins failed")
		}
	}

	msg := ""
	if s.cfg.Debug {
		msg = fmt.Sprint(rec)
	}
	s.renderError(w, r, http.StatusInternalServerError, msg)
}
