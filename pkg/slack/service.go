package slack

import (
	"context"
	"log/slog"
	"time"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token        string
	Channel      string
	DashboardURL string
}

// AnalysisStartedInput contains data for a "processing started" notification
// for one coordination analysis batch.
type AnalysisStartedInput struct {
	AnalysisID              string
	SourceCount             int
	Depth                   string
	SlackMessageFingerprint string
}

// AnalysisCompletedInput contains data for a terminal analysis notification.
type AnalysisCompletedInput struct {
	AnalysisID              string
	Status                  string // completed, failed
	Confidence              *float64
	AssessmentLabel         string
	KeyFactors              []string
	ExecutiveSummary        string
	FinalAnalysis           string
	ErrorMessage            string
	SlackMessageFingerprint string
	ThreadTS                string // Cached from start notification
}

// Service handles Slack notification delivery.
// Nil-safe: all methods are no-ops when service is nil.
type Service struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger
}

// NewService creates a new Slack notification service.
// Returns nil if Token or Channel is empty.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client:       NewClient(cfg.Token, cfg.Channel),
		dashboardURL: cfg.DashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, dashboardURL string) *Service {
	return &Service{
		client:       client,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NotifyAnalysisStarted sends a "processing started" notification.
// Only sends if fingerprint is present (Slack-originated alerts).
// Returns resolved threadTS for reuse by the terminal notification.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifyAnalysisStarted(ctx context.Context, input AnalysisStartedInput) string {
	if s == nil {
		return ""
	}

	if input.SlackMessageFingerprint == "" {
		return ""
	}

	threadTS, err := s.client.FindMessageByFingerprint(ctx, input.SlackMessageFingerprint)
	if err != nil {
		s.logger.Warn("Failed to find Slack thread for fingerprint",
			"analysis_id", input.AnalysisID,
			"fingerprint", input.SlackMessageFingerprint,
			"error", err)
	}

	blocks := BuildStartedMessage(input, s.dashboardURL)
	if err := s.client.PostMessage(ctx, blocks, threadTS, 5*time.Second); err != nil {
		s.logger.Error("Failed to send Slack start notification",
			"analysis_id", input.AnalysisID,
			"error", err)
	}

	return threadTS
}

// NotifyAnalysisCompleted sends a terminal status notification.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifyAnalysisCompleted(ctx context.Context, input AnalysisCompletedInput) {
	if s == nil {
		return
	}

	threadTS := input.ThreadTS
	if threadTS == "" && input.SlackMessageFingerprint != "" {
		var err error
		threadTS, err = s.client.FindMessageByFingerprint(ctx, input.SlackMessageFingerprint)
		if err != nil {
			s.logger.Warn("Failed to find Slack thread for fingerprint",
				"analysis_id", input.AnalysisID,
				"fingerprint", input.SlackMessageFingerprint,
				"error", err)
		}
	}

	blocks := BuildTerminalMessage(input, s.dashboardURL)
	if err := s.client.PostMessage(ctx, blocks, threadTS, 10*time.Second); err != nil {
		s.logger.Error("Failed to send Slack notification",
			"analysis_id", input.AnalysisID,
			"status", input.Status,
			"error", err)
	}
}
