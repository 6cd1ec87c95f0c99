package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/dshield-collective/coordination-pipeline/pkg/cache"
)

// Reasoner is the higher-level interface the Pattern Analyzer and
// Confidence Scorer stages depend on, narrowed from *Client so tests can
// substitute a fake.
type Reasoner interface {
	AnalyzeCoordination(ctx context.Context, dim analysis.Dimension, sessions []analysis.AttackSession, ctxData map[string]any) analysis.CorrelationResult
	ScoreConfidence(ctx context.Context, evidence map[string]float64) (float64, bool)
}

// CachingReasoner wraps a Client with the namespace-"llm" memoization
// described in §4.8: identical prompts are cached for a short TTL, and a
// cache hit must not change observable behavior.
type CachingReasoner struct {
	client *Client
	cache  *cache.Cache
	ttl    time.Duration
}

// NewCachingReasoner builds a Reasoner backed by client, memoizing
// generations in c under the llm namespace for ttl.
func NewCachingReasoner(client *Client, c *cache.Cache, ttl time.Duration) *CachingReasoner {
	return &CachingReasoner{client: client, cache: c, ttl: ttl}
}

type cachedGeneration struct {
	Text string `json:"text"`
}

// generate is the single memoized entry point: every higher-level operation
// routes its prompt through here so a repeated prompt always hits the same
// cache key.
func (r *CachingReasoner) generate(ctx context.Context, prompt string) (string, error) {
	key := promptCacheKey(prompt)

	if r.cache != nil {
		var hit cachedGeneration
		if err := r.cache.Get(ctx, cache.NamespaceLLM, key, &hit); err == nil {
			return hit.Text, nil
		}
	}

	result, err := r.client.Generate(ctx, GenerateRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}

	if r.cache != nil {
		_ = r.cache.Set(ctx, cache.NamespaceLLM, key, cachedGeneration{Text: result.Text}, r.ttl)
	}
	return result.Text, nil
}

func promptCacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// AnalyzeCoordination builds a dimension-specific prompt, calls generate,
// and returns a CorrelationResult. The stage never sees an error: any
// failure (network, timeout, non-200, or unparsable output) is absorbed
// into a fallback score with the failure reason attached (§4.4).
func (r *CachingReasoner) AnalyzeCoordination(ctx context.Context, dim analysis.Dimension, sessions []analysis.AttackSession, ctxData map[string]any) analysis.CorrelationResult {
	prompt := buildCorrelationPrompt(dim, sessions, ctxData)

	text, err := r.generate(ctx, prompt)
	if err != nil {
		return analysis.CorrelationResult{
			Score:     0.5,
			Rationale: fmt.Sprintf("fallback: LLM unavailable: %v", err),
			Method:    analysis.MethodFallback,
		}
	}

	score, rationale, usedFallback := parseCorrelation(text)
	method := analysis.MethodLLM
	if usedFallback {
		method = analysis.MethodFallback
	}
	return analysis.CorrelationResult{Score: score, Rationale: rationale, Method: method}
}

// ScoreConfidence prompts for an overall score and parses a float from the
// first "confidence: <n>" line. ok is false when parsing fails or the LLM
// call errors, signaling the caller to fall back to the weighted-mean
// estimate (§4.6, §4.8).
func (r *CachingReasoner) ScoreConfidence(ctx context.Context, evidence map[string]float64) (float64, bool) {
	prompt := buildConfidencePrompt(evidence)

	text, err := r.generate(ctx, prompt)
	if err != nil {
		return 0, false
	}
	return parseConfidenceLine(text)
}
