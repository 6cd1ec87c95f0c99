// Coordination analysis pipeline server — accepts batches of honeypot
// attack sessions, runs the coordination-detection workflow in the
// background, and exposes results over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/dshield-collective/coordination-pipeline/pkg/api"
	"github.com/dshield-collective/coordination-pipeline/pkg/cache"
	"github.com/dshield-collective/coordination-pipeline/pkg/cleanup"
	"github.com/dshield-collective/coordination-pipeline/pkg/config"
	"github.com/dshield-collective/coordination-pipeline/pkg/dispatch"
	"github.com/dshield-collective/coordination-pipeline/pkg/llm"
	"github.com/dshield-collective/coordination-pipeline/pkg/notify"
	"github.com/dshield-collective/coordination-pipeline/pkg/pipeline"
	"github.com/dshield-collective/coordination-pipeline/pkg/pipeline/stages"
	"github.com/dshield-collective/coordination-pipeline/pkg/slack"
	"github.com/dshield-collective/coordination-pipeline/pkg/state"
	"github.com/dshield-collective/coordination-pipeline/pkg/store"
	"github.com/dshield-collective/coordination-pipeline/pkg/tools"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}

	dbCfg, err := store.LoadConfigFromEnv(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}
	storeClient, err := store.NewClient(ctx, dbCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer storeClient.Close()
	log.Println("connected to PostgreSQL database")

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("invalid redis url: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	cacheClient := cache.New(rdb)
	rateLimiter := cache.NewRateLimiter(rdb)
	log.Println("connected to Redis")

	stateStore := state.New(storeClient, cfg.CacheTTLs.Analysis)

	llmClient := llm.NewClient(cfg.LLM)
	reasoner := llm.NewCachingReasoner(llmClient, cacheClient, cfg.CacheTTLs.LLM)
	llmHealth := llm.NewHealthMonitor(llmClient, cfg.LLM.HealthInterval)
	llmHealth.Start(ctx)
	defer llmHealth.Stop()

	toolRegistry := tools.NewRegistry(cfg.Tools)
	toolCoordinator := tools.NewCoordinator(toolRegistry, cfg.Pipeline.ToolConcurrency, cacheClient, cfg.CacheTTLs.Enrichment, cfg.CacheTTLs.Threat)

	stageMap := map[analysis.StageName]pipeline.StageFunc{
		analysis.StageOrchestrator:     stages.Orchestrator,
		analysis.StagePatternAnalyzer:  stages.NewPatternAnalyzer(reasoner),
		analysis.StageToolCoordinator:  stages.NewToolCoordinator(toolCoordinator),
		analysis.StageConfidenceScorer: stages.NewConfidenceScorer(reasoner),
		analysis.StageEnricher:         stages.Enricher,
	}
	engine := pipeline.New(stateStore, stageMap, time.Duration(cfg.Pipeline.AnalysisTimeoutSeconds)*time.Second)

	callbackClient := notify.NewCallbackClient(cfg.Pipeline.CallbackTimeout)

	var slackNotifier *notify.SlackNotifier
	if cfg.Slack.Enabled {
		token := os.Getenv(cfg.Slack.TokenEnv)
		svc := slack.NewService(slack.ServiceConfig{Token: token, Channel: cfg.Slack.Channel})
		slackNotifier = notify.NewSlackNotifier(svc)
		log.Println("Slack notifications enabled")
	} else {
		slackNotifier = notify.NewSlackNotifier(nil)
	}

	dispatcher := dispatch.New(stateStore, engine, callbackClient, slackNotifier, cfg.Dispatcher, cfg.Pipeline)
	dispatcher.Start()
	defer dispatcher.Stop()

	retentionSvc := cleanup.NewService(cfg.Retention, storeClient, stateStore)
	retentionSvc.Start(ctx)
	defer retentionSvc.Stop()

	server := api.NewServer(cfg, dispatcher, cacheClient, rateLimiter, llmHealth, storeClient)

	addr := ":" + cfg.Server.Port
	go func() {
		log.Printf("listening on %s", addr)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("error during HTTP shutdown: %v", err)
	}
}
