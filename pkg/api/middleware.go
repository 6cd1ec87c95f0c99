package api

import (
	"fmt"

	echo "github.com/labstack/echo/v5"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/dshield-collective/coordination-pipeline/pkg/cache"
	"github.com/dshield-collective/coordination-pipeline/pkg/config"
)

// securityHeaders returns middleware that sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			return next(c)
		}
	}
}

// rateLimit enforces a §4.9 sliding-window rate-limit category, keyed by
// whatever idFunc extracts from the request. Fails open (request allowed) if
// the cache backend is unavailable — rateLimiter.Allow already does this.
func rateLimit(rateLimiter *cache.RateLimiter, category cache.RateCategory, cfg config.RateLimit, idFunc func(c *echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			id := idFunc(c)
			decision := rateLimiter.Allow(c.Request().Context(), category, id, cfg.Limit, cfg.Window)
			if !decision.Allowed {
				c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", decision.RetryAfter))
				return respondError(c, fmt.Errorf("%w: retry after %ds", analysis.ErrRateLimited, decision.RetryAfter))
			}
			return next(c)
		}
	}
}

// rateLimitByIP enforces the §4.9 per-IP sliding-window category on every
// analysis endpoint.
func rateLimitByIP(rateLimiter *cache.RateLimiter, category cache.RateCategory, cfg config.RateLimit) echo.MiddlewareFunc {
	return rateLimit(rateLimiter, category, cfg, func(c *echo.Context) string { return c.RealIP() })
}

// rateLimitByAPIKey enforces the §4.9 per-API-key category, bucketing
// unauthenticated/debug-mode requests under a shared "anonymous" key rather
// than skipping the check.
func rateLimitByAPIKey(rateLimiter *cache.RateLimiter, cfg config.RateLimit) echo.MiddlewareFunc {
	return rateLimit(rateLimiter, cache.RateCategoryAPIKey, cfg, func(c *echo.Context) string {
		if key := c.Request().Header.Get("X-API-Key"); key != "" {
			return key
		}
		return "anonymous"
	})
}

// globalRateLimitKey is the single bucket id the §4.9 global category shares
// across every request, regardless of caller identity.
const globalRateLimitKey = "all"

// rateLimitGlobal enforces the §4.9 global sliding-window category, shared
// across every caller.
func rateLimitGlobal(rateLimiter *cache.RateLimiter, cfg config.RateLimit) echo.MiddlewareFunc {
	return rateLimit(rateLimiter, cache.RateCategoryGlobal, cfg, func(*echo.Context) string { return globalRateLimitKey })
}
