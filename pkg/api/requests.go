package api

import "github.com/dshield-collective/coordination-pipeline/pkg/analysis"

// BulkSubmitRequest is the HTTP request body for POST /api/v1/analyses/bulk
// (§6 "session_batches: [[AttackSession,…], …]").
type BulkSubmitRequest struct {
	SessionBatches [][]analysis.AttackSession `json:"session_batches"`
	Depth          analysis.Depth             `json:"analysis_depth"`
	CallbackURL    string                     `json:"callback_url,omitempty"`
}

// toRequests expands the batch-of-sessions shape into one AnalysisRequest
// per batch, each carrying the shared depth/callback.
func (r BulkSubmitRequest) toRequests() []analysis.AnalysisRequest {
	reqs := make([]analysis.AnalysisRequest, 0, len(r.SessionBatches))
	for _, batch := range r.SessionBatches {
		reqs = append(reqs, analysis.AnalysisRequest{
			Sessions:    batch,
			Depth:       r.Depth,
			CallbackURL: r.CallbackURL,
		})
	}
	return reqs
}
