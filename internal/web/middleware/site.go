// SPDX-License-Identifier: MIT

package middleware

import (
	"context"
	"net/http"

	"github.com/ManuGH/sitekit/internal/log"
	"github.com/ManuGH/sitekit/internal/storage"
)

type siteKey struct{}

// SiteLookup resolves the site with the given id.
type SiteLookup interface {
	Current(ctx context.Context, id int) (storage.Site, error)
}

// CurrentSite attaches the SITE_ID row to the request. Lookup failures are
// logged and the default site is used.
func CurrentSite(sites SiteLookup, siteID int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			site, err := sites.Current(r.Context(), siteID)
			if err != nil {
				logger := log.WithComponentFromContext(r.Context(), "sites")
				logger.Error().Err(err).Int(log.FieldSiteID, siteID).Msg("site lookup failed, using default")
				site = storage.DefaultSite(siteID)
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), siteKey{}, site)))
		})
	}
}

// SiteFromContext returns the request's site. ok is false outside
// CurrentSite.
func SiteFromContext(ctx context.Context) (storage.Site, bool) {
	site, ok := ctx.Value(siteKey{}).(storage.Site)
	return site, ok
}
