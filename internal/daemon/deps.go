// SPDX-License-Identifier: MIT

package daemon

import (
	"net/http"

	"github.com/ManuGH/sitekit/internal/config"
	"github.com/rs/zerolog"
)

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// Config is the resolved site configuration
	Config config.Config

	// Handler serves the site
	Handler http.Handler

	// MetricsHandler is served on Config.Server.MetricsAddr when that is set
	MetricsHandler http.Handler
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if !d.Config.Environment.Valid() {
		return ErrMissingConfig
	}
	if d.Handler == nil {
		return ErrMissingHandler
	}
	return nil
}
