// Package llm implements the LLM Reasoning Client (§4.8): an HTTP client to
// a local inference endpoint exposing list-models and generate, plus the
// higher-level analyze_coordination and score_confidence operations used by
// the Pattern Analyzer and Confidence Scorer stages.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dshield-collective/coordination-pipeline/pkg/config"
)

const (
	// generateBackoffMin is the delay before the first retry.
	generateBackoffMin = 250 * time.Millisecond
	// generateBackoffMax caps the exponential growth of the retry delay.
	generateBackoffMax = 5 * time.Second
)

// Client talks to a local inference endpoint over HTTP.
type Client struct {
	httpClient *http.Client
	endpoint   string
	model      string
	retryBudget int
	temperature float64
	topP        float64
	maxTokens   int
	logger      *slog.Logger
}

// NewClient builds a Client from the LLM section of the loaded configuration.
func NewClient(cfg config.LLM) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		retryBudget: cfg.RetryBudget,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   cfg.MaxTokens,
		logger:      slog.With("component", "llm_client"),
	}
}

// GenerateRequest is the input contract for Generate (§4.8).
type GenerateRequest struct {
	Prompt      string
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
	Timeout     time.Duration
}

// GenerateResult is the output contract for Generate (§4.8).
type GenerateResult struct {
	Text            string
	PromptTokens    int
	CompletionTokens int
	InferenceTime   time.Duration
	Model           string
}

type generateWireRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`
	Stream      bool    `json:"stream"`
}

type generateWireResponse struct {
	Model      string `json:"model"`
	Response   string `json:"response"`
	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

// Model describes one entry from ListModels.
type Model struct {
	Name string `json:"name"`
}

// ListModels queries the endpoint for available models.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("build list-models request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list models: HTTP %d", resp.StatusCode)
	}

	var wire struct {
		Models []Model `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode list-models response: %w", err)
	}
	return wire.Models, nil
}

// Generate calls the inference endpoint once, retrying up to req's retry
// budget (default from configuration) on network/timeout/non-200 failures.
// Any failure surviving the retry budget propagates as an error; the caller
// decides the fallback (§4.8).
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	if req.Temperature == 0 {
		req.Temperature = c.temperature
	}
	if req.TopP == 0 {
		req.TopP = c.topP
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.maxTokens
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.httpClient.Timeout
	}

	budget := c.retryBudget
	if budget < 1 {
		budget = 1
	}

	var lastErr error
	backoff := generateBackoffMin
	for attempt := 0; attempt < budget; attempt++ {
		result, err := c.generateOnce(ctx, req, timeout)
		if err == nil {
			return result, nil
		}
		lastErr = err
		c.logger.Warn("generate attempt failed", "attempt", attempt+1, "budget", budget, "error", err)

		if attempt == budget-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, generateBackoffMax)
	}
	return nil, fmt.Errorf("generate: exhausted retry budget of %d: %w", budget, lastErr)
}

func (c *Client) generateOnce(ctx context.Context, req GenerateRequest, timeout time.Duration) (*GenerateResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wire := generateWireRequest{
		Model:       req.Model,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call inference endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("inference endpoint returned HTTP %d: %s", resp.StatusCode, msg)
	}

	var wireResp generateWireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return nil, fmt.Errorf("decode generate response: %w", err)
	}

	return &GenerateResult{
		Text:             wireResp.Response,
		PromptTokens:     wireResp.PromptEvalCount,
		CompletionTokens: wireResp.EvalCount,
		InferenceTime:    time.Since(start),
		Model:            wireResp.Model,
	}, nil
}
