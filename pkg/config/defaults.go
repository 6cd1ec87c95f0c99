package config

import "time"

// Weights holds the Confidence Scorer's per-dimension aggregation weights
// (§4.6). ExtraDimension applies to any evidence key outside the canonical
// five.
type Weights struct {
	Temporal          float64 `yaml:"temporal"`
	Behavioral        float64 `yaml:"behavioral"`
	Infrastructure    float64 `yaml:"infrastructure"`
	Geographic        float64 `yaml:"geographic"`
	PayloadSimilarity float64 `yaml:"payload_similarity"`
	ExtraDimension    float64 `yaml:"extra_dimension"`
}

// DefaultWeights returns the weights prescribed by §4.6.
func DefaultWeights() Weights {
	return Weights{
		Temporal:          0.25,
		Behavioral:        0.25,
		Infrastructure:    0.20,
		Geographic:        0.15,
		PayloadSimilarity: 0.15,
		ExtraDimension:    0.10,
	}
}

// Pipeline holds Workflow Engine / Orchestrator settings not specific to any
// one external collaborator.
type Pipeline struct {
	MaxSessions            int           `yaml:"max_sessions"`
	AnalysisTimeoutSeconds int           `yaml:"analysis_timeout_seconds"`
	ToolConcurrency        int           `yaml:"tool_concurrency"`
	Weights                Weights       `yaml:"weights"`
	CallbackTimeout        time.Duration `yaml:"callback_timeout"`
}

// DefaultPipeline returns the spec's default pipeline settings (§5).
func DefaultPipeline() Pipeline {
	return Pipeline{
		MaxSessions:            1000,
		AnalysisTimeoutSeconds: 300,
		ToolConcurrency:        8,
		Weights:                DefaultWeights(),
		CallbackTimeout:        30 * time.Second,
	}
}

// CacheTTLs holds the namespace-specific TTLs from §4.9.
type CacheTTLs struct {
	Analysis    time.Duration `yaml:"analysis"`
	Campaign    time.Duration `yaml:"campaign"`
	Threat      time.Duration `yaml:"threat"`
	Workflow    time.Duration `yaml:"workflow"`
	Enrichment  time.Duration `yaml:"enrichment"`
	Rate        time.Duration `yaml:"rate"`
	UserSession time.Duration `yaml:"user_session"`
	LLM         time.Duration `yaml:"llm"`
}

// DefaultCacheTTLs returns the defaults from §4.9.
func DefaultCacheTTLs() CacheTTLs {
	return CacheTTLs{
		Analysis:    24 * time.Hour,
		Campaign:    6 * time.Hour,
		Threat:      1 * time.Hour,
		Workflow:    1 * time.Hour,
		Enrichment:  2 * time.Hour,
		Rate:        60 * time.Second,
		UserSession: 30 * time.Minute,
		LLM:         5 * time.Minute,
	}
}

// RateLimit holds a single category's sliding-window limit (§4.9).
type RateLimit struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// RateLimits holds the per-category limiter configuration (§4.9's
// categorization: api_key, endpoint, api_key×endpoint, global, ip, user).
type RateLimits struct {
	APIKey         RateLimit `yaml:"api_key"`
	Endpoint       RateLimit `yaml:"endpoint"`
	APIKeyEndpoint RateLimit `yaml:"api_key_endpoint"`
	Global         RateLimit `yaml:"global"`
	IP             RateLimit `yaml:"ip"`
	User           RateLimit `yaml:"user"`
}

// DefaultRateLimits returns conservative sliding-window defaults.
func DefaultRateLimits() RateLimits {
	window := 60 * time.Second
	return RateLimits{
		APIKey:         RateLimit{Limit: 100, Window: window},
		Endpoint:       RateLimit{Limit: 200, Window: window},
		APIKeyEndpoint: RateLimit{Limit: 60, Window: window},
		Global:         RateLimit{Limit: 1000, Window: window},
		IP:             RateLimit{Limit: 30, Window: window},
		User:           RateLimit{Limit: 60, Window: window},
	}
}

// LLM holds the LLM Reasoning Client's endpoint settings (§4.8).
type LLM struct {
	Endpoint       string        `yaml:"endpoint"`
	Model          string        `yaml:"model"`
	Timeout        time.Duration `yaml:"timeout"`
	RetryBudget    int           `yaml:"retry_budget"`
	Temperature    float64       `yaml:"temperature"`
	TopP           float64       `yaml:"top_p"`
	MaxTokens      int           `yaml:"max_tokens"`
	HealthInterval time.Duration `yaml:"health_interval"`
}

// DefaultLLM returns the defaults from §4.8.
func DefaultLLM() LLM {
	return LLM{
		Endpoint:       "http://localhost:11434",
		Model:          "llama3",
		Timeout:        30 * time.Second,
		RetryBudget:    3,
		Temperature:    0.2,
		TopP:           0.9,
		MaxTokens:      512,
		HealthInterval: 30 * time.Second,
	}
}

// Tools holds the Tool Coordinator's per-tool endpoint settings (§4.5).
type Tools struct {
	BGPLookupEndpoint   string        `yaml:"bgp_lookup_endpoint"`
	ThreatIntelEndpoint string        `yaml:"threat_intel_endpoint"`
	GeolocationEndpoint string        `yaml:"geolocation_endpoint"`
	ASNAnalysisEndpoint string        `yaml:"asn_analysis_endpoint"`
	Timeout             time.Duration `yaml:"timeout"`
}

// DefaultTools returns placeholder local endpoints; real deployments
// override these via environment/config file.
func DefaultTools() Tools {
	return Tools{
		BGPLookupEndpoint:   "http://localhost:9101",
		ThreatIntelEndpoint: "http://localhost:9102",
		GeolocationEndpoint: "http://localhost:9103",
		ASNAnalysisEndpoint: "http://localhost:9104",
		Timeout:             5 * time.Second,
	}
}

// Dispatcher holds the Intake & Dispatcher's worker-pool settings.
type Dispatcher struct {
	WorkerCount             int           `yaml:"worker_count"`
	QueueCapacity           int           `yaml:"queue_capacity"`
	PollInterval            time.Duration `yaml:"poll_interval"`
	PollIntervalJitter      time.Duration `yaml:"poll_interval_jitter"`
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}

// DefaultDispatcher returns sensible worker-pool defaults.
func DefaultDispatcher() Dispatcher {
	return Dispatcher{
		WorkerCount:             4,
		QueueCapacity:           256,
		PollInterval:            500 * time.Millisecond,
		PollIntervalJitter:      100 * time.Millisecond,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// Slack holds optional Slack notification settings.
type Slack struct {
	Enabled  bool   `yaml:"enabled"`
	TokenEnv string `yaml:"token_env"`
	Channel  string `yaml:"channel"`
}

// DefaultSlack returns Slack disabled by default.
func DefaultSlack() Slack {
	return Slack{Enabled: false, TokenEnv: "SLACK_BOT_TOKEN"}
}

// Server holds the HTTP surface's settings (§6).
type Server struct {
	Port      string `yaml:"port"`
	APIKeyEnv string `yaml:"api_key_env"`
	Debug     bool   `yaml:"debug"`
}

// DefaultServer returns the HTTP defaults.
func DefaultServer() Server {
	return Server{Port: "8080", APIKeyEnv: "API_KEY", Debug: false}
}

// Retention controls how long terminal analyses are kept before the
// background cleanup loop purges their checkpoint rows and in-memory state.
// Error states persist at 2x the normal retention window (§4.7).
type Retention struct {
	AnalysisRetentionDays int           `yaml:"analysis_retention_days"`
	CleanupInterval       time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetention returns the built-in retention defaults.
func DefaultRetention() Retention {
	return Retention{
		AnalysisRetentionDays: 30,
		CleanupInterval:       12 * time.Hour,
	}
}
