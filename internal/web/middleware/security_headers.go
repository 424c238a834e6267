// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ManuGH/sitekit/internal/config"
)

// DefaultCSP only allows same-origin resources.
const DefaultCSP = "default-src 'self'; img-src 'self' data:; style-src 'self'; frame-ancestors 'none'"

// hstsValue is sent on secure responses when SSL redirect is on.
const hstsValue = "max-age=31536000; includeSubDomains"

type forwardedTLSKey struct{}

// IsSecure reports whether the request reached us over TLS, directly or
// through a proxy that Security was told to trust.
func IsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	forwarded, _ := r.Context().Value(forwardedTLSKey{}).(bool)
	return forwarded
}

// Security redirects plain HTTP to HTTPS when SSLRedirect is set and adds
// the configured security headers to all responses. Paths in
// redirectExempt are served over plain HTTP as well. X-Forwarded-Proto is
// honoured only with TrustProxyHeaders.
func Security(cfg config.SecurityConfig, redirectExempt ...string) func(http.Handler) http.Handler {
	exempt := make(map[string]bool, len(redirectExempt))
	for _, p := range redirectExempt {
		exempt[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.TrustProxyHeaders && r.TLS == nil && strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
				r = r.WithContext(context.WithValue(r.Context(), forwardedTLSKey{}, true))
			}
			secure := IsSecure(r)
			if cfg.SSLRedirect && !secure && !exempt[r.URL.Path] {
				target := "https://" + r.Host + r.URL.RequestURI()
				http.Redirect(w, r, target, http.StatusMovedPermanently)
				return
			}

			h := w.Header()
			if cfg.SSLRedirect && secure {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			h.Set("Content-Security-Policy", DefaultCSP)
			if cfg.ContentTypeNosniff {
				h.Set("X-Content-Type-Options", "nosniff")
			}
			if cfg.XFrameOptions != "" {
				h.Set("X-Frame-Options", cfg.XFrameOptions)
			}
			h.Set("Referrer-Policy", "same-origin")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")

			next.ServeHTTP(w, r)
		})
	}
}
