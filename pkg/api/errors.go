package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
)

// mapError maps a pipeline/dispatcher error to an HTTP status and detail per
// the error taxonomy (§7). Unrecognized errors are logged and surfaced as a
// generic 500.
func mapError(err error) *echo.HTTPError {
	var validErr *analysis.ValidationError
	switch {
	case errors.As(err, &validErr):
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	case errors.Is(err, analysis.ErrValidation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, analysis.ErrAuth):
		return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid API key")
	case errors.Is(err, analysis.ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	case errors.Is(err, analysis.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "analysis not found")
	case errors.Is(err, analysis.ErrQueueFull):
		return echo.NewHTTPError(http.StatusTooManyRequests, "dispatcher queue full, retry later")
	case errors.Is(err, analysis.ErrCache):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "cache backend unavailable")
	case errors.Is(err, analysis.ErrFatal):
		return echo.NewHTTPError(http.StatusInternalServerError, "fatal pipeline error")
	}

	slog.Error("unexpected api error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

// errorEnvelope builds the §6 error body for a given HTTP error.
func errorEnvelope(detail, code string) ErrorResponse {
	return ErrorResponse{Detail: detail, ErrorCode: code, Timestamp: time.Now()}
}

// respondError renders err as the §6 error envelope. Handlers call this
// directly rather than returning an error up to echo's default handler, so
// the envelope shape is guaranteed regardless of framework defaults.
func respondError(c *echo.Context, err error) error {
	he := mapError(err)

	detail, _ := he.Message.(string)
	if detail == "" {
		detail = http.StatusText(he.Code)
	}

	return c.JSON(he.Code, errorEnvelope(detail, errorCode(he.Code)))
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusUnauthorized:
		return "auth_error"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "schema_invalid"
	case http.StatusServiceUnavailable:
		return "unready"
	default:
		return "internal_error"
	}
}
