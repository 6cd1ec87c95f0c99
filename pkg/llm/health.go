package llm

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// HealthStatus captures the health check result for the inference endpoint.
type HealthStatus struct {
	Healthy   bool
	LastCheck time.Time
	Error     string
	Models    int
}

// HealthMonitor periodically probes the inference endpoint with ListModels,
// caching the last result for cheap reads (mirrors the MCP health monitor's
// periodic-goroutine/cached-status idiom).
type HealthMonitor struct {
	client        *Client
	checkInterval time.Duration

	statusMu sync.RWMutex
	status   HealthStatus

	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger
}

// NewHealthMonitor creates a health monitor for client, probing every interval.
func NewHealthMonitor(client *Client, interval time.Duration) *HealthMonitor {
	return &HealthMonitor{
		client:        client,
		checkInterval: interval,
		logger:        slog.With("component", "llm_health"),
	}
}

// Start launches the background probe loop. A second call on an already
// running monitor is a no-op.
func (m *HealthMonitor) Start(ctx context.Context) {
	if m.cancel != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.loop(ctx)
}

// Stop shuts the monitor down and waits for the loop goroutine to exit.
func (m *HealthMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.done != nil {
		<-m.done
	}
	m.cancel = nil
	m.done = nil
}

func (m *HealthMonitor) loop(ctx context.Context) {
	defer close(m.done)

	m.check(ctx)

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *HealthMonitor) check(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	models, err := m.client.ListModels(checkCtx)

	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	m.status.LastCheck = time.Now()
	if err != nil {
		m.status.Healthy = false
		m.status.Error = err.Error()
		m.status.Models = 0
		m.logger.Warn("llm health check failed", "error", err)
		return
	}
	m.status.Healthy = true
	m.status.Error = ""
	m.status.Models = len(models)
}

// Status returns the last recorded health status.
func (m *HealthMonitor) Status() HealthStatus {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	return m.status
}
