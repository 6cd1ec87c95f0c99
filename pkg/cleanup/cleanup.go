// Package cleanup provides data retention and cleanup services.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/dshield-collective/coordination-pipeline/pkg/config"
	"github.com/dshield-collective/coordination-pipeline/pkg/state"
	"github.com/dshield-collective/coordination-pipeline/pkg/store"
)

// Service periodically enforces retention policies:
//   - Purges durable analysis checkpoint rows (and their cascading stage/
//     interaction/timeline rows) past AnalysisRetentionDays.
//   - Evicts terminal in-memory State Store entries past their TTL window.
//
// Both operations are idempotent and safe to run from multiple replicas.
type Service struct {
	cfg   config.Retention
	store *store.Client
	state *state.Store

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg config.Retention, storeClient *store.Client, stateStore *state.Store) *Service {
	return &Service{cfg: cfg, store: storeClient, state: stateStore}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started",
		"analysis_retention_days", s.cfg.AnalysisRetentionDays,
		"interval", s.cfg.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.purgeOldAnalyses(ctx)
	s.evictStaleState()
}

func (s *Service) purgeOldAnalyses(ctx context.Context) {
	if s.store == nil {
		return
	}
	cutoff := time.Now().Add(-time.Duration(s.cfg.AnalysisRetentionDays) * 24 * time.Hour)
	count, err := s.store.DeleteAnalysesOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("retention: purging old analyses failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention: purged old analyses", "count", count)
	}
}

func (s *Service) evictStaleState() {
	if s.state == nil {
		return
	}
	if removed := s.state.Cleanup(time.Now()); removed > 0 {
		slog.Info("retention: evicted stale in-memory analyses", "count", removed)
	}
}
