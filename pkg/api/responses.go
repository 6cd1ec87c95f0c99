package api

import "time"

// BulkSubmitResponse is returned by POST /api/v1/analyses/bulk (§6).
type BulkSubmitResponse struct {
	AnalysisIDs []string `json:"analysis_ids"`
	Status      string   `json:"status"`
	BatchCount  int      `json:"batch_count"`
}

// ErrorResponse is the error envelope returned for every non-2xx response
// (§6 "{ detail, error_code?, timestamp }").
type ErrorResponse struct {
	Detail    string    `json:"detail"`
	ErrorCode string    `json:"error_code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LivenessResponse is returned by GET /healthz (§6 "liveness").
type LivenessResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// ReadinessResponse is returned by GET /readyz (§6 "readiness").
type ReadinessResponse struct {
	Status       string          `json:"status"`
	Dependencies map[string]bool `json:"dependencies"`
}

// HealthResponse is returned by GET /health, a superset basic probe.
type HealthResponse struct {
	Status        string          `json:"status"`
	Version       string          `json:"version"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	Dependencies  map[string]bool `json:"dependencies"`
}
