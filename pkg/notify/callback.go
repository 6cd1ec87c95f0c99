// Package notify implements optional callback delivery on analysis
// termination (§4.1): a generic HTTP POST of the Result to the request's
// callback_url, and an operational Slack notification alongside it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/dshield-collective/coordination-pipeline/pkg/version"
)

// CallbackClient posts a Result to a caller-supplied URL. Failures are
// logged, never returned to the caller: callback delivery must not mutate
// the analysis result (§4.1).
type CallbackClient struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// NewCallbackClient builds a CallbackClient enforcing timeout on every POST.
func NewCallbackClient(timeout time.Duration) *CallbackClient {
	return &CallbackClient{
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     slog.With("component", "callback_client"),
	}
}

// Deliver posts result as a JSON body to url. A non-2xx response or network
// failure is logged and swallowed.
func (c *CallbackClient) Deliver(ctx context.Context, url string, result analysis.Result) {
	if url == "" {
		return
	}

	body, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("failed to serialize callback body", "analysis_id", result.AnalysisID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to build callback request", "analysis_id", result.AnalysisID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.Full())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("callback delivery failed", "analysis_id", result.AnalysisID, "url", url, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("callback delivery rejected", "analysis_id", result.AnalysisID, "url", url, "status", resp.StatusCode)
		return
	}
}
