// SPDX-License-Identifier: MIT

package middleware

import (
	"net"
	"net/http"

	"github.com/ManuGH/sitekit/internal/config"
	"github.com/ManuGH/sitekit/internal/log"
)

// AllowedHosts rejects requests whose Host header matches none of the
// normalized ALLOWED_HOSTS patterns with 400.
func AllowedHosts(patterns []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := r.Host
			if h, _, err := net.SplitHostPort(host); err == nil {
				host = h
			}
			if !config.HostAllowed(host, patterns) {
				logger := log.WithComponentFromContext(r.Context(), "http")
				logger.Warn().
					Str(log.FieldEvent, "host.disallowed").
					Str(log.FieldHost, r.Host).
					Msg("invalid HTTP_HOST header")
				http.Error(w, "Bad Request (400)", http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
