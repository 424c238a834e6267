// SPDX-License-Identifier: MIT

package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/ManuGH/sitekit/internal/log"
)

// ToolbarPath is where the debug toolbar is served.
const ToolbarPath = "/__debug__/toolbar/"

// DebugToolbar annotates responses to clients in INTERNAL_IPS with a link
// to the toolbar and logs per-request timings at debug level.
func DebugToolbar(internalIPs []string) func(http.Handler) http.Handler {
	allowed := ipSet(internalIPs)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed[clientIP(r)] {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			w.Header().Set("X-Debug-Toolbar", ToolbarPath)
			next.ServeHTTP(w, r)

			logger := log.WithComponentFromContext(r.Context(), "debug_toolbar")
			logger.Debug().
				Str(log.FieldMethod, r.Method).
				Str(log.FieldPath, r.URL.Path).
				Dur("elapsed", time.Since(start)).
				Msg("request timing")
		})
	}
}

// InternalOnly serves next only to clients in INTERNAL_IPS and hands every
// other request to denied.
func InternalOnly(internalIPs []string, denied http.Handler) func(http.Handler) http.Handler {
	allowed := ipSet(internalIPs)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed[clientIP(r)] {
				denied.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ipSet(ips []string) map[string]bool {
	set := make(map[string]bool, len(ips))
	for _, ip := range ips {
		if parsed := net.ParseIP(ip); parsed != nil {
			set[parsed.String()] = true
		}
	}
	return set
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return host
}
