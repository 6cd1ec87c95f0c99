package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
)

// submitHandler handles POST /api/v1/analyses (§6 "Submit request").
func (s *Server) submitHandler(c *echo.Context) error {
	var req analysis.AnalysisRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, analysis.ErrValidation)
	}

	id, err := s.dispatcher.Submit(c.Request().Context(), req, extractUser(c), extractClientID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusAccepted, &analysis.Result{
		AnalysisID:        id,
		Status:            analysis.StatusQueued,
		EnrichmentApplied: false,
	})
}

// bulkSubmitHandler handles POST /api/v1/analyses/bulk (§6 "Bulk submit").
func (s *Server) bulkSubmitHandler(c *echo.Context) error {
	var req BulkSubmitRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, analysis.ErrValidation)
	}

	ids, err := s.dispatcher.BulkSubmit(c.Request().Context(), req.toRequests(), extractUser(c), extractClientID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusAccepted, &BulkSubmitResponse{
		AnalysisIDs: ids,
		Status:      string(analysis.StatusQueued),
		BatchCount:  len(ids),
	})
}

// getHandler handles GET /api/v1/analyses/:id (§6 "Get response").
func (s *Server) getHandler(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return respondError(c, analysis.ErrValidation)
	}

	result, err := s.dispatcher.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, &result)
}

// extractUser mirrors the teacher's oauth2-proxy header convention: the
// forwarded identity, falling back to an anonymous label when absent.
func extractUser(c *echo.Context) string {
	if user := c.Request().Header.Get("X-Forwarded-User"); user != "" {
		return user
	}
	if email := c.Request().Header.Get("X-Forwarded-Email"); email != "" {
		return email
	}
	return "api-client"
}

// extractClientID is a best-effort observability label distinguishing
// calling systems sharing the same API key.
func extractClientID(c *echo.Context) string {
	if id := c.Request().Header.Get("X-Client-ID"); id != "" {
		return id
	}
	return c.RealIP()
}
