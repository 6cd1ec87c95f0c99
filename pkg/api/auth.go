package api

import (
	"fmt"

	echo "github.com/labstack/echo/v5"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/dshield-collective/coordination-pipeline/pkg/config"
)

// apiKeyAuth enforces the §6 "opaque key header" contract: requests to
// analysis endpoints must carry X-API-Key matching the configured key,
// unless debug mode is enabled. Health endpoints are registered outside
// this middleware's group and never require auth.
func apiKeyAuth(cfg *config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			if cfg.Server.Debug {
				return next(c)
			}

			want := cfg.ResolvedAPIKey()
			if want == "" {
				return respondError(c, fmt.Errorf("%w: API key not configured", analysis.ErrAuth))
			}
			if c.Request().Header.Get("X-API-Key") != want {
				return respondError(c, fmt.Errorf("%w: missing or invalid API key", analysis.ErrAuth))
			}
			return next(c)
		}
	}
}
