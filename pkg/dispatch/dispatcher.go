// Package dispatch implements the Work Intake & Dispatcher (§4.1): a
// worker-pool that accepts analyses synchronously, mints analysis ids,
// executes the Workflow Engine in the background, and makes results
// retrievable by id.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/dshield-collective/coordination-pipeline/pkg/config"
	"github.com/dshield-collective/coordination-pipeline/pkg/masking"
	"github.com/dshield-collective/coordination-pipeline/pkg/notify"
	"github.com/dshield-collective/coordination-pipeline/pkg/pipeline"
	"github.com/dshield-collective/coordination-pipeline/pkg/state"
)

// milestones are the progress percentages logged during background
// processing (§4.1 "milestone percentages {10,20,80,90,100}").
type milestone struct {
	pct int
	tag string
}

var (
	milestoneClaimed   = milestone{10, "progress"}
	milestoneEngineRun = milestone{20, "progress"}
	milestoneEngineEnd = milestone{80, "progress"}
	milestoneNotified  = milestone{90, "progress"}
	milestoneDone      = milestone{100, "success"}
	milestoneFailed    = milestone{100, "failure"}
)

// job carries the per-analysis context/cancel pair a worker needs to run the
// engine, registered at Submit time and looked up when the worker claims the
// job off the channel.
type job struct {
	analysisID string
	ctx        context.Context
	cancel     context.CancelFunc
}

// Dispatcher is the worker-pool Intake & Dispatcher. Submit is synchronous
// and non-blocking; processing happens on background workers reading from a
// bounded channel (§5 backpressure: a full channel causes Submit to return
// ErrQueueFull).
type Dispatcher struct {
	store    *state.Store
	engine   *pipeline.Engine
	callback *notify.CallbackClient
	slack    *notify.SlackNotifier

	jobs chan job

	workerCount     int
	maxSessions     int
	analysisTimeout time.Duration
	shutdownTimeout time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	logger *slog.Logger
}

// New builds a Dispatcher. callback must be a real *notify.CallbackClient.
// slackNotifier may wrap a nil *slack.Service (Slack disabled) since all of
// its methods are nil-safe.
func New(store *state.Store, engine *pipeline.Engine, callback *notify.CallbackClient, slackNotifier *notify.SlackNotifier, cfg config.Dispatcher, pipelineCfg config.Pipeline) *Dispatcher {
	return &Dispatcher{
		store:           store,
		engine:          engine,
		callback:        callback,
		slack:           slackNotifier,
		jobs:            make(chan job, cfg.QueueCapacity),
		workerCount:     cfg.WorkerCount,
		maxSessions:     pipelineCfg.MaxSessions,
		analysisTimeout: time.Duration(pipelineCfg.AnalysisTimeoutSeconds) * time.Second,
		shutdownTimeout: cfg.GracefulShutdownTimeout,
		stopCh:          make(chan struct{}),
		logger:          slog.With("component", "dispatcher"),
	}
}

// Start spawns the configured number of worker goroutines.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info("dispatcher started", "worker_count", d.workerCount, "queue_capacity", cap(d.jobs))
}

// Stop signals all workers to finish their in-flight job and exit, waiting
// up to shutdownTimeout before giving up.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("dispatcher stopped gracefully")
	case <-time.After(d.shutdownTimeout):
		d.logger.Warn("graceful shutdown timed out, some analyses may be interrupted")
	}
}

// Submit validates req, mints an analysis id, persists the initial state,
// and enqueues it for background processing (§4.1). clientID is a
// best-effort identity label for observability only.
func (d *Dispatcher) Submit(ctx context.Context, req analysis.AnalysisRequest, userID, clientID string) (string, error) {
	if err := analysis.ValidateRequest(req, d.maxSessions, time.Now()); err != nil {
		return "", err
	}
	return d.admit(ctx, req, userID, clientID)
}

// BulkSubmit validates each batch and admits it independently, returning one
// analysis id per batch in the same order (§4.1, limit MaxBulkBatches).
func (d *Dispatcher) BulkSubmit(ctx context.Context, reqs []analysis.AnalysisRequest, userID, clientID string) ([]string, error) {
	if err := analysis.ValidateBulk(reqs, d.maxSessions, time.Now()); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(reqs))
	for _, req := range reqs {
		id, err := d.admit(ctx, req, userID, clientID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// admit mints an id, saves the initial state, and enqueues the job. Assumes
// req has already been validated.
func (d *Dispatcher) admit(ctx context.Context, req analysis.AnalysisRequest, userID, clientID string) (string, error) {
	id := uuid.New().String()
	for i := range req.Sessions {
		req.Sessions[i].Payload = masking.MaskPayload(req.Sessions[i].Payload)
	}
	st := analysis.NewState(id, userID, req)

	jobCtx, cancel := context.WithTimeout(context.Background(), d.analysisTimeout)

	if err := d.store.Save(ctx, st, cancel); err != nil {
		cancel()
		return "", err
	}

	select {
	case d.jobs <- job{analysisID: id, ctx: jobCtx, cancel: cancel}:
	default:
		cancel()
		return "", errors.Join(analysis.ErrQueueFull, errors.New("analysis "+id+" admitted but dispatcher queue is full"))
	}

	d.logger.Info("analysis submitted",
		"analysis_id", id,
		"client_id", clientID,
		"session_count", len(req.Sessions),
		"depth", req.Depth)
	return id, nil
}

// Get returns the current result for analysisID: terminal Result if the
// pipeline has finished, or a status-only Result while still processing
// (§4.1 "Idempotent").
func (d *Dispatcher) Get(ctx context.Context, analysisID string) (analysis.Result, error) {
	st, err := d.store.Get(ctx, analysisID)
	if err != nil {
		return analysis.Result{}, err
	}
	return st.ToResult(), nil
}

func (d *Dispatcher) worker(workerIndex int) {
	defer d.wg.Done()
	log := d.logger.With("worker", workerIndex)

	for {
		select {
		case j, ok := <-d.jobs:
			if !ok {
				return
			}
			d.process(j, log)
		case <-d.stopCh:
			return
		}
	}
}

func (d *Dispatcher) process(j job, log *slog.Logger) {
	defer j.cancel()

	log = log.With("analysis_id", j.analysisID)
	d.logMilestone(log, milestoneClaimed)

	var threadTS string
	if initial, err := d.store.Get(j.ctx, j.analysisID); err == nil {
		threadTS = d.slack.NotifyStarted(j.ctx, j.analysisID, len(initial.Input.Sessions), initial.Input.Depth)
	} else {
		log.Error("failed to load state before start notification", "error", err)
		threadTS = d.slack.NotifyStarted(j.ctx, j.analysisID, 0, "")
	}

	d.logMilestone(log, milestoneEngineRun)
	if err := d.engine.Run(j.ctx, j.analysisID); err != nil {
		log.Error("engine run failed", "error", err)
		d.fail(j.analysisID, err, threadTS, log)
		return
	}
	d.logMilestone(log, milestoneEngineEnd)

	st, err := d.store.Get(context.Background(), j.analysisID)
	if err != nil {
		log.Error("failed to load state after engine run", "error", err)
		return
	}
	result := st.ToResult()

	d.slack.NotifyTerminal(context.Background(), j.analysisID, result, threadTS)
	d.callback.Deliver(context.Background(), st.Input.CallbackURL, result)
	d.logMilestone(log, milestoneNotified)

	d.logMilestone(log, milestoneDone)
}

// fail persists a terminal failed state after the engine itself could not
// run (a FatalError per §7: "Terminate pipeline; status failed; error
// persisted"), then still fires the Slack and callback notifications so the
// failure is observable the same way a stage-level failure is. j.ctx may
// already be expired at this point, so the update and notifications use a
// fresh background context.
func (d *Dispatcher) fail(analysisID string, runErr error, threadTS string, log *slog.Logger) {
	now := time.Now()
	updateErr := d.store.Update(context.Background(), analysisID, func(st *analysis.State) {
		st.Status = analysis.StatusFailed
		st.RecordError(runErr.Error(), now)
		st.EndTime = &now
	})
	if updateErr != nil {
		log.Error("failed to persist failed status after engine run error", "error", updateErr)
		return
	}

	st, err := d.store.Get(context.Background(), analysisID)
	if err != nil {
		log.Error("failed to load state after persisting failed status", "error", err)
		return
	}
	result := st.ToResult()

	d.slack.NotifyTerminal(context.Background(), analysisID, result, threadTS)
	d.callback.Deliver(context.Background(), st.Input.CallbackURL, result)
	d.logMilestone(log, milestoneNotified)
	d.logMilestone(log, milestoneFailed)
}

func (d *Dispatcher) logMilestone(log *slog.Logger, m milestone) {
	log.Info("analysis processing", "milestone_pct", m.pct, "state", m.tag)
}
