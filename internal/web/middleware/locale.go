// SPDX-License-Identifier: MIT

package middleware

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
)

type localeKey struct{}

// Locale negotiates the response language from Accept-Language against
// supported. The first supported tag is the fallback. With i18n off every
// request gets the fallback.
func Locale(supported []language.Tag, i18n bool) func(http.Handler) http.Handler {
	if len(supported) == 0 {
		supported = []language.Tag{language.English}
	}
	matcher := language.NewMatcher(supported)
	fallback := supported[0]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tag := fallback
			if i18n {
				if accept := r.Header.Get("Accept-Language"); accept != "" {
					if prefs, _, err := language.ParseAcceptLanguage(accept); err == nil && len(prefs) > 0 {
						_, idx, conf := matcher.Match(prefs...)
						if conf != language.No {
							tag = supported[idx]
						}
					}
				}
				w.Header().Add("Vary", "Accept-Language")
			}
			w.Header().Set("Content-Language", tag.String())
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), localeKey{}, tag)))
		})
	}
}

// LocaleFromContext returns the negotiated language, or English.
func LocaleFromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(localeKey{}).(language.Tag); ok {
		return tag
	}
	return language.English
}
