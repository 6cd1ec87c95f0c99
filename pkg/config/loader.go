package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileConfig mirrors the pipeline.yaml file structure. Every section is a
// pointer so an absent section in the file simply means "use the built-in
// default" rather than zeroing the section out.
type FileConfig struct {
	Server      *Server     `yaml:"server"`
	Pipeline    *Pipeline   `yaml:"pipeline"`
	CacheTTLs   *CacheTTLs  `yaml:"cache_ttls"`
	RateLimits  *RateLimits `yaml:"rate_limits"`
	LLM         *LLM        `yaml:"llm"`
	Tools       *Tools      `yaml:"tools"`
	Dispatcher  *Dispatcher `yaml:"dispatcher"`
	Slack       *Slack      `yaml:"slack"`
	Retention   *Retention  `yaml:"retention"`
	RedisURL    string      `yaml:"redis_url"`
	DatabaseURL string      `yaml:"database_url"`
}

// Initialize loads, merges, and validates configuration from configDir's
// pipeline.yaml (if present) and the environment, returning a ready-to-use
// Config. No component reads the environment or a file directly once this
// returns (§9 "model as an explicit configuration record").
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized",
		"worker_count", cfg.Dispatcher.WorkerCount,
		"max_sessions", cfg.Pipeline.MaxSessions,
		"llm_endpoint", cfg.LLM.Endpoint)

	return cfg, nil
}

func load(configDir string) (*Config, error) {
	server := DefaultServer()
	pipeline := DefaultPipeline()
	cacheTTLs := DefaultCacheTTLs()
	rateLimits := DefaultRateLimits()
	llm := DefaultLLM()
	tools := DefaultTools()
	dispatcher := DefaultDispatcher()
	slackCfg := DefaultSlack()
	retention := DefaultRetention()

	file, err := loadFile(configDir)
	if err != nil {
		return nil, err
	}

	if file.Server != nil {
		if err := mergeOverrides(&server, file.Server); err != nil {
			return nil, fmt.Errorf("merging server config: %w", err)
		}
	}
	if file.Pipeline != nil {
		if err := mergeOverrides(&pipeline, file.Pipeline); err != nil {
			return nil, fmt.Errorf("merging pipeline config: %w", err)
		}
	}
	if file.CacheTTLs != nil {
		if err := mergeOverrides(&cacheTTLs, file.CacheTTLs); err != nil {
			return nil, fmt.Errorf("merging cache TTL config: %w", err)
		}
	}
	if file.RateLimits != nil {
		if err := mergeOverrides(&rateLimits, file.RateLimits); err != nil {
			return nil, fmt.Errorf("merging rate limit config: %w", err)
		}
	}
	if file.LLM != nil {
		if err := mergeOverrides(&llm, file.LLM); err != nil {
			return nil, fmt.Errorf("merging LLM config: %w", err)
		}
	}
	if file.Tools != nil {
		if err := mergeOverrides(&tools, file.Tools); err != nil {
			return nil, fmt.Errorf("merging tools config: %w", err)
		}
	}
	if file.Dispatcher != nil {
		if err := mergeOverrides(&dispatcher, file.Dispatcher); err != nil {
			return nil, fmt.Errorf("merging dispatcher config: %w", err)
		}
	}
	if file.Slack != nil {
		if err := mergeOverrides(&slackCfg, file.Slack); err != nil {
			return nil, fmt.Errorf("merging slack config: %w", err)
		}
	}
	if file.Retention != nil {
		if err := mergeOverrides(&retention, file.Retention); err != nil {
			return nil, fmt.Errorf("merging retention config: %w", err)
		}
	}

	redisURL := file.RedisURL
	if v := os.Getenv("REDIS_URL"); v != "" {
		redisURL = v
	}
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	dbURL := file.DatabaseURL
	if v := os.Getenv("DATABASE_URL"); v != "" {
		dbURL = v
	}

	return &Config{
		configDir:   configDir,
		Server:      server,
		Pipeline:    pipeline,
		CacheTTLs:   cacheTTLs,
		RateLimits:  rateLimits,
		LLM:         llm,
		Tools:       tools,
		Dispatcher:  dispatcher,
		Slack:       slackCfg,
		Retention:   retention,
		RedisURL:    redisURL,
		DatabaseURL: dbURL,
	}, nil
}

func loadFile(configDir string) (*FileConfig, error) {
	var file FileConfig
	path := filepath.Join(configDir, "pipeline.yaml")

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// expand ${VAR}/$VAR references before parsing
		data = ExpandEnv(data)
		if yerr := yaml.Unmarshal(data, &file); yerr != nil {
			return nil, NewLoadError("pipeline.yaml", fmt.Errorf("%w: %v", ErrInvalidYAML, yerr))
		}
	case os.IsNotExist(err):
		// no file present — built-in defaults apply
	default:
		return nil, NewLoadError("pipeline.yaml", err)
	}

	return &file, nil
}

// ResolvedAPIKey reads the configured API key environment variable at call
// time so the key itself never sits in the Config struct or gets logged.
func (c *Config) ResolvedAPIKey() string {
	if c.Server.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Server.APIKeyEnv)
}
