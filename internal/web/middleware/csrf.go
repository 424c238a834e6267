// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
)

const (
	// CSRFCookieName holds the per-browser token.
	CSRFCookieName = "csrftoken"
	// CSRFFormField is the form field unsafe requests must echo.
	CSRFFormField = "csrf_token"
	// CSRFHeader may carry the token instead of the form field.
	CSRFHeader = "X-CSRFToken"
)

type csrfKey struct{}

// CSRFConfig configures CSRF.
type CSRFConfig struct {
	CookieSecure   bool
	TrustedOrigins []string
}

// CSRF protects state-changing requests (POST, PUT, DELETE, PATCH) in two
// steps. The Origin, or Referer, must be same-origin or trusted. The
// csrftoken cookie must then match the csrf_token field or X-CSRFToken
// header. Safe requests get a cookie issued when they have none.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	trusted := make(map[string]bool, len(cfg.TrustedOrigins))
	for _, origin := range cfg.TrustedOrigins {
		trusted[strings.TrimSuffix(origin, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(CSRFCookieName); err == nil && len(c.Value) == 64 {
				token = c.Value
			}

			if isUnsafeMethod(r.Method) {
				origin := requestOrigin(r)
				if origin == "" {
					http.Error(w, "Forbidden (CSRF): missing origin information", http.StatusForbidden)
					return
				}
				if !trusted[origin] && !isSameOrigin(origin, r) {
					http.Error(w, "Forbidden (CSRF): cross-origin request not allowed", http.StatusForbidden)
					return
				}
				if token == "" {
					http.Error(w, "Forbidden (CSRF): cookie not set", http.StatusForbidden)
					return
				}
				sent := r.Header.Get(CSRFHeader)
				if sent == "" {
					sent = r.PostFormValue(CSRFFormField)
				}
				if subtle.ConstantTimeCompare([]byte(sent), []byte(token)) != 1 {
					http.Error(w, "Forbidden (CSRF): token missing or incorrect", http.StatusForbidden)
					return
				}
			}

			if token == "" {
				token = newCSRFToken()
				http.SetCookie(w, &http.Cookie{
					Name:     CSRFCookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   31449600, // one year
					Secure:   cfg.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfKey{}, token)))
		})
	}
}

// CSRFToken returns the token forms should embed.
func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfKey{}).(string)
	return token
}

func newCSRFToken() string {
	var b [32]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func isUnsafeMethod(m string) bool {
	switch m {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}
	return false
}

// requestOrigin extracts the origin from the Origin header, falling back to
// the Referer.
func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return strings.TrimSuffix(origin, "/")
	}
	referer := r.Header.Get("Referer")
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func isSameOrigin(origin string, r *http.Request) bool {
	if r.Host == "" {
		return false
	}
	scheme := "http"
	if IsSecure(r) {
		scheme = "https"
	}
	return origin == scheme+"://"+r.Host
}
