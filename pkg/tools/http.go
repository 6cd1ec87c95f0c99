package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dshield-collective/coordination-pipeline/pkg/config"
	"github.com/dshield-collective/coordination-pipeline/pkg/version"
)

// httpTool is a single-address lookup against an external HTTP endpoint of
// the form "<base>?addr=<address>", grounded on pkg/runbook/github.go's
// plain http.Client + NewRequestWithContext idiom.
type httpTool struct {
	httpClient *http.Client
	endpoint   string
}

func newHTTPTool(endpoint string, timeout time.Duration) *httpTool {
	return &httpTool{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
	}
}

func (t *httpTool) lookup(ctx context.Context, addr string) (map[string]any, error) {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse tool endpoint: %w", err)
	}
	q := u.Query()
	q.Set("addr", addr)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build tool request: %w", err)
	}
	req.Header.Set("User-Agent", version.Full())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call tool endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tool endpoint returned HTTP %d", resp.StatusCode)
	}

	var fields map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode tool response: %w", err)
	}
	return fields, nil
}

// NewRegistry builds the default Registry of HTTP-backed tool
// implementations from the Tools configuration section (§4.5).
func NewRegistry(cfg config.Tools) Registry {
	return Registry{
		NameBGPLookup:   newHTTPTool(cfg.BGPLookupEndpoint, cfg.Timeout).lookup,
		NameThreatIntel: newHTTPTool(cfg.ThreatIntelEndpoint, cfg.Timeout).lookup,
		NameGeolocation: newHTTPTool(cfg.GeolocationEndpoint, cfg.Timeout).lookup,
		NameASNAnalysis: newHTTPTool(cfg.ASNAnalysisEndpoint, cfg.Timeout).lookup,
	}
}
