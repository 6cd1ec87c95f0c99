package config

import (
	"fmt"
	"net/url"
	"os"
)

// Validator validates configuration comprehensively with clear error messages.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation, fail-fast at the first
// error. Sections are checked in dependency order: server before anything
// that needs auth, pipeline/cache/rate before the components that depend
// on their timing, LLM/tools/dispatcher last, Slack last of all since it is
// optional.
func (v *Validator) ValidateAll() error {
	if err := v.validateServer(); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	if err := v.validatePipeline(); err != nil {
		return fmt.Errorf("pipeline validation failed: %w", err)
	}
	if err := v.validateCacheTTLs(); err != nil {
		return fmt.Errorf("cache TTL validation failed: %w", err)
	}
	if err := v.validateRateLimits(); err != nil {
		return fmt.Errorf("rate limit validation failed: %w", err)
	}
	if err := v.validateLLM(); err != nil {
		return fmt.Errorf("LLM validation failed: %w", err)
	}
	if err := v.validateTools(); err != nil {
		return fmt.Errorf("tools validation failed: %w", err)
	}
	if err := v.validateDispatcher(); err != nil {
		return fmt.Errorf("dispatcher validation failed: %w", err)
	}
	if err := v.validateSlack(); err != nil {
		return fmt.Errorf("slack validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateServer() error {
	s := v.cfg.Server
	if s.Port == "" {
		return NewValidationError("server", "port", fmt.Errorf("must not be empty"))
	}
	if s.APIKeyEnv == "" {
		return NewValidationError("server", "api_key_env", fmt.Errorf("must not be empty"))
	}
	return nil
}

func (v *Validator) validatePipeline() error {
	p := v.cfg.Pipeline
	if p.MaxSessions < 1 {
		return NewValidationError("pipeline", "max_sessions", fmt.Errorf("must be at least 1, got %d", p.MaxSessions))
	}
	if p.AnalysisTimeoutSeconds < 1 {
		return NewValidationError("pipeline", "analysis_timeout_seconds", fmt.Errorf("must be positive, got %d", p.AnalysisTimeoutSeconds))
	}
	if p.ToolConcurrency < 1 {
		return NewValidationError("pipeline", "tool_concurrency", fmt.Errorf("must be at least 1, got %d", p.ToolConcurrency))
	}
	if p.CallbackTimeout <= 0 {
		return NewValidationError("pipeline", "callback_timeout", fmt.Errorf("must be positive, got %v", p.CallbackTimeout))
	}

	sum := p.Weights.Temporal + p.Weights.Behavioral + p.Weights.Infrastructure +
		p.Weights.Geographic + p.Weights.PayloadSimilarity + p.Weights.ExtraDimension
	if sum < 0.99 || sum > 1.01 {
		return NewValidationError("pipeline", "weights", fmt.Errorf("dimension weights must sum to 1.0, got %.4f", sum))
	}
	for name, w := range map[string]float64{
		"temporal":           p.Weights.Temporal,
		"behavioral":         p.Weights.Behavioral,
		"infrastructure":     p.Weights.Infrastructure,
		"geographic":         p.Weights.Geographic,
		"payload_similarity": p.Weights.PayloadSimilarity,
		"extra_dimension":    p.Weights.ExtraDimension,
	} {
		if w < 0 {
			return NewValidationError("pipeline", "weights."+name, fmt.Errorf("must be non-negative, got %.4f", w))
		}
	}

	return nil
}

func (v *Validator) validateCacheTTLs() error {
	c := v.cfg.CacheTTLs
	for name, d := range map[string]int64{
		"analysis":     int64(c.Analysis),
		"campaign":     int64(c.Campaign),
		"threat":       int64(c.Threat),
		"workflow":     int64(c.Workflow),
		"enrichment":   int64(c.Enrichment),
		"rate":         int64(c.Rate),
		"user_session": int64(c.UserSession),
		"llm":          int64(c.LLM),
	} {
		if d <= 0 {
			return NewValidationError("cache_ttls", name, fmt.Errorf("must be positive"))
		}
	}
	return nil
}

func (v *Validator) validateRateLimits() error {
	limits := map[string]RateLimit{
		"api_key":          v.cfg.RateLimits.APIKey,
		"endpoint":         v.cfg.RateLimits.Endpoint,
		"api_key_endpoint": v.cfg.RateLimits.APIKeyEndpoint,
		"global":           v.cfg.RateLimits.Global,
		"ip":               v.cfg.RateLimits.IP,
		"user":             v.cfg.RateLimits.User,
	}
	for name, l := range limits {
		if l.Limit < 1 {
			return NewValidationError("rate_limits", name, fmt.Errorf("limit must be at least 1, got %d", l.Limit))
		}
		if l.Window <= 0 {
			return NewValidationError("rate_limits", name, fmt.Errorf("window must be positive, got %v", l.Window))
		}
	}
	return nil
}

func (v *Validator) validateLLM() error {
	l := v.cfg.LLM
	if l.Endpoint == "" {
		return NewValidationError("llm", "endpoint", fmt.Errorf("must not be empty"))
	}
	if _, err := url.Parse(l.Endpoint); err != nil {
		return NewValidationError("llm", "endpoint", fmt.Errorf("not a valid URL: %w", err))
	}
	if l.Model == "" {
		return NewValidationError("llm", "model", fmt.Errorf("must not be empty"))
	}
	if l.Timeout <= 0 {
		return NewValidationError("llm", "timeout", fmt.Errorf("must be positive, got %v", l.Timeout))
	}
	if l.RetryBudget < 0 {
		return NewValidationError("llm", "retry_budget", fmt.Errorf("must be non-negative, got %d", l.RetryBudget))
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return NewValidationError("llm", "temperature", fmt.Errorf("must be between 0 and 2, got %.2f", l.Temperature))
	}
	if l.TopP <= 0 || l.TopP > 1 {
		return NewValidationError("llm", "top_p", fmt.Errorf("must be between 0 (exclusive) and 1, got %.2f", l.TopP))
	}
	if l.MaxTokens < 1 {
		return NewValidationError("llm", "max_tokens", fmt.Errorf("must be at least 1, got %d", l.MaxTokens))
	}
	if l.HealthInterval <= 0 {
		return NewValidationError("llm", "health_interval", fmt.Errorf("must be positive, got %v", l.HealthInterval))
	}
	return nil
}

func (v *Validator) validateTools() error {
	t := v.cfg.Tools
	endpoints := map[string]string{
		"bgp_lookup_endpoint":   t.BGPLookupEndpoint,
		"threat_intel_endpoint": t.ThreatIntelEndpoint,
		"geolocation_endpoint":  t.GeolocationEndpoint,
		"asn_analysis_endpoint": t.ASNAnalysisEndpoint,
	}
	for name, endpoint := range endpoints {
		if endpoint == "" {
			return NewValidationError("tools", name, fmt.Errorf("must not be empty"))
		}
		if _, err := url.Parse(endpoint); err != nil {
			return NewValidationError("tools", name, fmt.Errorf("not a valid URL: %w", err))
		}
	}
	if t.Timeout <= 0 {
		return NewValidationError("tools", "timeout", fmt.Errorf("must be positive, got %v", t.Timeout))
	}
	return nil
}

func (v *Validator) validateDispatcher() error {
	d := v.cfg.Dispatcher
	if d.WorkerCount < 1 || d.WorkerCount > 64 {
		return NewValidationError("dispatcher", "worker_count", fmt.Errorf("must be between 1 and 64, got %d", d.WorkerCount))
	}
	if d.QueueCapacity < 1 {
		return NewValidationError("dispatcher", "queue_capacity", fmt.Errorf("must be at least 1, got %d", d.QueueCapacity))
	}
	if d.PollInterval <= 0 {
		return NewValidationError("dispatcher", "poll_interval", fmt.Errorf("must be positive, got %v", d.PollInterval))
	}
	if d.PollIntervalJitter < 0 {
		return NewValidationError("dispatcher", "poll_interval_jitter", fmt.Errorf("must be non-negative, got %v", d.PollIntervalJitter))
	}
	if d.PollIntervalJitter >= d.PollInterval {
		return NewValidationError("dispatcher", "poll_interval_jitter", fmt.Errorf("must be less than poll_interval, got jitter=%v interval=%v", d.PollIntervalJitter, d.PollInterval))
	}
	if d.GracefulShutdownTimeout <= 0 {
		return NewValidationError("dispatcher", "graceful_shutdown_timeout", fmt.Errorf("must be positive, got %v", d.GracefulShutdownTimeout))
	}
	return nil
}

func (v *Validator) validateSlack() error {
	s := v.cfg.Slack
	if !s.Enabled {
		return nil
	}
	if s.Channel == "" {
		return NewValidationError("slack", "channel", fmt.Errorf("required when slack is enabled"))
	}
	if s.TokenEnv == "" {
		return NewValidationError("slack", "token_env", fmt.Errorf("required when slack is enabled"))
	}
	if token := os.Getenv(s.TokenEnv); token == "" {
		return NewValidationError("slack", "token_env", fmt.Errorf("environment variable %s is not set", s.TokenEnv))
	}
	return nil
}
